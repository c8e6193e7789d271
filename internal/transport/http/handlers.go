package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/service"
	"github.com/milad/thermo/internal/window"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 5 * time.Second
	maxRecordBody   = 1 << 20
	opRecord        = "record"
	kindRateLimited = "RateLimited"
	kindNotFound    = "NotFound"
	kindBadMethod   = "MethodNotAllowed"
)

type Options struct {
	Logger *slog.Logger
	// CORSOrigins defaults to "*".
	CORSOrigins []string
	// RecordRate limits /api/collection per client address; zero disables it.
	RecordRate  rate.Limit
	RecordBurst int
	// Timeout bounds each upstream call. Defaults to 5s.
	Timeout time.Duration
}

type Server struct {
	q       Querier
	router  *mux.Router
	handler http.Handler
	limiter *ipLimiter
	logger  *slog.Logger
	timeout time.Duration
}

func New(q Querier, opts Options) *Server {
	s := &Server{
		q:       q,
		router:  mux.NewRouter(),
		logger:  opts.Logger,
		timeout: opts.Timeout,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if opts.RecordRate > 0 {
		burst := opts.RecordBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = newIPLimiter(opts.RecordRate, burst)
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodPut, http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(handlers.CompressHandler(s.router))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := r.Header.Get("X-Request-Id")
	if reqID == "" {
		reqID = uuid.NewString()
	}

	w.Header().Set("X-Request-Id", reqID)
	rr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if rec := recover(); rec != nil {
			rr.status = http.StatusInternalServerError

			// Best-effort response. If headers/body were already written, we can
			// only log.
			if !rr.wroteHeader {
				if strings.HasPrefix(r.URL.Path, "/api") {
					writeAPIError(rr, http.StatusInternalServerError, "error", string(service.KindInternal), "internal error")
				} else {
					http.Error(rr, "internal error", http.StatusInternalServerError)
				}
			}

			s.logger.Error("panic handling request",
				"method", r.Method, "path", r.URL.Path, "req_id", reqID,
				"panic", rec, "stack", string(debug.Stack()),
			)
		}

		dur := time.Since(start)
		observeHTTPRequest(r, rr.status, dur)

		// Keep health checks + metrics endpoint quiet.
		if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			s.logger.Debug("http request",
				"method", r.Method, "path", r.URL.Path, "status", rr.status,
				"duration", dur.Truncate(time.Millisecond), "req_id", reqID,
			)
		}
	}()

	s.handler.ServeHTTP(rr, r)
}

func (s *Server) routes() {
	// Kept on the root router so method mismatches reach MethodNotAllowedHandler.
	s.router.HandleFunc("/api/collection", s.handleRecord).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/api/list", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/api/latest", s.handleLatest).Methods(http.MethodGet)
	s.router.HandleFunc("/api/average", s.handleAverage).Methods(http.MethodGet)
	s.router.HandleFunc("/api/max", s.handleMax).Methods(http.MethodGet)
	s.router.HandleFunc("/api/min", s.handleMin).Methods(http.MethodGet)
	s.router.HandleFunc("/api/this-week-average", s.handleWeekAverage).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleAPIMethodNotAllowed)
}

// handleRecord appends a reading given as query parameters (GET), a JSON
// body or a form (POST).
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(r) {
		w.Header().Set("Retry-After", "1")
		writeAPIError(w, http.StatusTooManyRequests, "err", kindRateLimited, "too many requests")
		return
	}
	in, err := parseRecordInput(w, r)
	if err != nil {
		s.fail(w, opRecord, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	rd, err := s.q.Record(ctx, in)
	observeQuery(opRecord, outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, opRecord, err)
		return
	}
	writeData(w, toReadingJSON(rd))
}

// handleList returns the readings of the window, optionally paged with
// page_size and page_token.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	pageSize, err := parseOptionalInt(r.URL.Query().Get("page_size"))
	if err != nil {
		s.fail(w, "list", fmt.Errorf("%w: invalid page_size", service.ErrInvalidPagination))
		return
	}
	pageToken := r.URL.Query().Get("page_token")

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.q.ListPage(ctx, windowInput(r), pageSize, pageToken)
	observeQuery("list", outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, "list", err)
		return
	}
	writeData(w, listJSON{
		Count:         res.Count,
		List:          toReadingsJSON(res.Readings),
		NextPageToken: res.NextPageToken,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	rd, err := s.q.Latest(ctx)
	observeQuery("latest", outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, "latest", err)
		return
	}
	writeData(w, toReadingJSON(rd))
}

func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.q.Average(ctx, windowInput(r))
	observeQuery("average", outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, "average", err)
		return
	}
	writeData(w, scalarJSON{Value: nullable(res.Value), Count: res.Count})
}

func (s *Server) handleMax(w http.ResponseWriter, r *http.Request) {
	s.handleExtremum(w, r, "max", s.q.Max)
}

func (s *Server) handleMin(w http.ResponseWriter, r *http.Request) {
	s.handleExtremum(w, r, "min", s.q.Min)
}

func (s *Server) handleExtremum(w http.ResponseWriter, r *http.Request, op string, query func(context.Context, window.Input) (domain.ExtremumResult, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := query(ctx, windowInput(r))
	observeQuery(op, outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, op, err)
		return
	}
	writeData(w, extremumJSON{
		List:  toReadingsJSON(res.Matches),
		Count: res.Count,
		Value: nullable(res.Value),
	})
}

func (s *Server) handleWeekAverage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.q.AverageOfWeek(ctx)
	observeQuery("averageOfWeek", outcome(err), time.Since(start))
	if err != nil {
		s.fail(w, "averageOfWeek", err)
		return
	}
	writeData(w, scalarJSON{Value: nullable(res.Value), Count: res.Count})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api") {
		handleAPINotFound(w, r)
		return
	}
	http.NotFound(w, r) // HTML/plain-text is fine for non-API paths.
}

func handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	writeAPIError(w, http.StatusNotFound, "error", kindNotFound, "not found")
}

func handleAPIMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeAPIError(w, http.StatusMethodNotAllowed, "error", kindBadMethod, "method not allowed")
}

// fail writes err as a failure envelope. Messages of internal and storage
// failures are replaced so that backend details stay in the log.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	kind := service.KindOf(err)
	status := httpStatus(kind, err)
	msg := err.Error()
	switch kind {
	case service.KindInternal:
		msg = "internal error"
	case service.KindStorageUnavailable:
		msg = "storage unavailable"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "op", op, "kind", string(kind), "err", err,
			"req_id", w.Header().Get("X-Request-Id"))
	}
	key := "error"
	if op == opRecord {
		key = "err"
	}
	writeAPIError(w, status, key, string(kind), msg)
}

func httpStatus(kind service.Kind, err error) int {
	switch kind {
	case service.KindInvalidWindowKind, service.KindInvalidDateFormat,
		service.KindInvalidReading, service.KindInvalidPagination:
		return http.StatusBadRequest
	case service.KindNoReadingsRecorded:
		return http.StatusNotFound
	case service.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case service.KindCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(service.KindOf(err))
}

func windowInput(r *http.Request) window.Input {
	q := r.URL.Query()
	return window.Input{
		StartTime: q.Get("startTime"),
		EndTime:   q.Get("endTime"),
		Type:      q.Get("type"),
		Format:    q.Get("format"),
	}
}

func parseRecordInput(w http.ResponseWriter, r *http.Request) (service.RecordInput, error) {
	var value, position, recordedAt string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case r.Method == http.MethodPost && mediaType == "application/json":
		var body recordRequestJSON
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody))
		if err := dec.Decode(&body); err != nil {
			return service.RecordInput{}, fmt.Errorf("%w: malformed JSON body: %v", service.ErrInvalidReading, err)
		}
		if body.Value == nil {
			return service.RecordInput{}, fmt.Errorf("%w: value is required", service.ErrInvalidReading)
		}
		in := service.RecordInput{Value: *body.Value, Position: body.Position}
		switch v := body.RecordedAt.(type) {
		case nil:
		case string:
			recordedAt = v
		case float64:
			recordedAt = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return service.RecordInput{}, fmt.Errorf("%w: recordedAt must be a string or epoch millis", service.ErrInvalidReading)
		}
		at, err := service.ParseRecordedAt(recordedAt)
		if err != nil {
			return service.RecordInput{}, err
		}
		in.RecordedAt = at
		return in, nil
	case r.Method == http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxRecordBody)
		if err := r.ParseForm(); err != nil {
			return service.RecordInput{}, fmt.Errorf("%w: malformed form: %v", service.ErrInvalidReading, err)
		}
		value, position, recordedAt = r.PostForm.Get("value"), r.PostForm.Get("position"), r.PostForm.Get("recordedAt")
	default:
		q := r.URL.Query()
		value, position, recordedAt = q.Get("value"), q.Get("position"), q.Get("recordedAt")
	}

	if strings.TrimSpace(value) == "" {
		return service.RecordInput{}, fmt.Errorf("%w: value is required", service.ErrInvalidReading)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return service.RecordInput{}, fmt.Errorf("%w: value %q is not a number", service.ErrInvalidReading, value)
	}
	at, err := service.ParseRecordedAt(recordedAt)
	if err != nil {
		return service.RecordInput{}, err
	}
	return service.RecordInput{Value: v, Position: position, RecordedAt: at}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(p)
}

func writeData(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusOK, envelope{Status: statusOK, Data: data})
}

// writeAPIError writes a failure envelope under key, which is "err" for
// record and "error" for everything else.
func writeAPIError(w http.ResponseWriter, status int, key, kind, message string) {
	body := &apiErrorJSON{
		Kind:      kind,
		Message:   message,
		RequestID: w.Header().Get("X-Request-Id"),
	}
	env := envelope{Status: statusFailed}
	if key == "err" {
		env.Err = body
	} else {
		env.Error = body
	}
	_ = writeJSON(w, status, env)
}

func parseOptionalInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}
