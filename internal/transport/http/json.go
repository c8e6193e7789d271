package httpserver

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/milad/thermo/internal/domain"
)

const (
	statusOK     = 0
	statusFailed = 1
)

// envelope is the body of every /api response. Record failures use the
// "err" key and every other operation uses "error".
type envelope struct {
	Status int           `json:"status"`
	Data   any           `json:"data,omitempty"`
	Err    *apiErrorJSON `json:"err,omitempty"`
	Error  *apiErrorJSON `json:"error,omitempty"`
}

type apiErrorJSON struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type readingJSON struct {
	ID         int64    `json:"id"`
	Value      *float64 `json:"value"`
	Position   string   `json:"position"`
	RecordedAt string   `json:"recordedAt"`
}

type listJSON struct {
	Count         int           `json:"count"`
	List          []readingJSON `json:"list"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// scalarJSON carries null instead of a value when the window had no readings.
type scalarJSON struct {
	Value *float64 `json:"value"`
	Count int      `json:"count"`
}

type extremumJSON struct {
	List  []readingJSON `json:"list"`
	Count int           `json:"count"`
	Value *float64      `json:"value"`
}

type recordRequestJSON struct {
	Value      *float64 `json:"value"`
	Position   string   `json:"position"`
	RecordedAt any      `json:"recordedAt"` // RFC 3339 string or epoch millis
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toReadingJSON(r domain.Reading) readingJSON {
	return readingJSON{
		ID:         r.ID,
		Value:      nullable(r.Value),
		Position:   r.Position,
		RecordedAt: formatTime(r.RecordedAt),
	}
}

func toReadingsJSON(readings []domain.Reading) []readingJSON {
	out := make([]readingJSON, 0, len(readings))
	for _, r := range readings {
		out = append(out, toReadingJSON(r))
	}
	return out
}
