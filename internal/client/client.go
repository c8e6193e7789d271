// Package client is a typed client of the thermo HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/milad/thermo/internal/window"
)

type Reading struct {
	ID         int64    `json:"id"`
	Value      *float64 `json:"value"`
	Position   string   `json:"position"`
	RecordedAt string   `json:"recordedAt"`
}

type List struct {
	Count         int       `json:"count"`
	List          []Reading `json:"list"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// Scalar is an average; Value is nil when the window had no readings.
type Scalar struct {
	Value *float64 `json:"value"`
	Count int      `json:"count"`
}

// Extremum is a max or min with every reading that reached it.
type Extremum struct {
	List  []Reading `json:"list"`
	Count int       `json:"count"`
	Value *float64  `json:"value"`
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

type envelope[T any] struct {
	Status int       `json:"status"`
	Data   T         `json:"data"`
	Err    *APIError `json:"err"`
	Error  *APIError `json:"error"`
}

type Client struct {
	r *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{r: r}
}

// Record posts a reading. Empty position and recordedAt are left to the
// server defaults; recordedAt is RFC 3339 or epoch millis.
func (c *Client) Record(ctx context.Context, value float64, position, recordedAt string) (Reading, error) {
	body := map[string]any{"value": value}
	if position != "" {
		body["position"] = position
	}
	if recordedAt != "" {
		body["recordedAt"] = recordedAt
	}
	req := c.r.R().SetHeader("Content-Type", "application/json").SetBody(body)
	return do[Reading](ctx, req, http.MethodPost, "/api/collection")
}

// List fetches the readings of a window. A pageSize of 0 fetches all of them.
func (c *Client) List(ctx context.Context, in window.Input, pageSize int, pageToken string) (List, error) {
	req := c.r.R().SetQueryParams(windowParams(in))
	if pageSize > 0 {
		req.SetQueryParam("page_size", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		req.SetQueryParam("page_token", pageToken)
	}
	return do[List](ctx, req, http.MethodGet, "/api/list")
}

func (c *Client) Latest(ctx context.Context) (Reading, error) {
	return do[Reading](ctx, c.r.R(), http.MethodGet, "/api/latest")
}

func (c *Client) Average(ctx context.Context, in window.Input) (Scalar, error) {
	return do[Scalar](ctx, c.r.R().SetQueryParams(windowParams(in)), http.MethodGet, "/api/average")
}

func (c *Client) Max(ctx context.Context, in window.Input) (Extremum, error) {
	return do[Extremum](ctx, c.r.R().SetQueryParams(windowParams(in)), http.MethodGet, "/api/max")
}

func (c *Client) Min(ctx context.Context, in window.Input) (Extremum, error) {
	return do[Extremum](ctx, c.r.R().SetQueryParams(windowParams(in)), http.MethodGet, "/api/min")
}

func (c *Client) WeekAverage(ctx context.Context) (Scalar, error) {
	return do[Scalar](ctx, c.r.R(), http.MethodGet, "/api/this-week-average")
}

func do[T any](ctx context.Context, req *resty.Request, method, path string) (T, error) {
	var (
		zero T
		env  envelope[T]
	)
	resp, err := req.SetContext(ctx).SetResult(&env).SetError(&env).Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() || env.Status != 0 {
		apiErr := env.Err
		if apiErr == nil {
			apiErr = env.Error
		}
		if apiErr == nil {
			apiErr = &APIError{Kind: "Unknown", Message: resp.Status()}
		}
		apiErr.StatusCode = resp.StatusCode()
		return zero, apiErr
	}
	return env.Data, nil
}

func windowParams(in window.Input) map[string]string {
	params := map[string]string{}
	for k, v := range map[string]string{
		"startTime": in.StartTime,
		"endTime":   in.EndTime,
		"type":      in.Type,
		"format":    in.Format,
	} {
		if v != "" {
			params[k] = v
		}
	}
	return params
}
