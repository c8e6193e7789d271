package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/repo/memrepo"
	"github.com/milad/thermo/internal/service"
	grpcserver "github.com/milad/thermo/internal/transport/grpc"
	"github.com/milad/thermo/internal/window"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// This is a light end-to-end test:
// HTTP handler -> gRPC client -> in-memory gRPC server -> service -> repo.
func TestHTTP_ToGRPC_EndToEnd(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	now := day.Add(18 * time.Hour)
	repo := memrepo.New([]domain.Reading{
		{Value: 18, Position: "hall", RecordedAt: day.Add(8 * time.Hour)},
		{Value: 25, Position: "hall", RecordedAt: day.Add(10 * time.Hour)},
		{Value: 20, Position: "hall", RecordedAt: day.Add(12 * time.Hour)},
	})
	svc := service.NewTemperatureService(repo, window.NewResolver(func() time.Time { return now }, time.UTC))

	lis := bufconn.Listen(1024 * 1024)
	g := grpc.NewServer()
	grpcserver.RegisterTemperatureServiceServer(g, grpcserver.New(svc))
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	httpSrv := New(grpcserver.NewClient(conn), Options{})

	// A reading at 11:00 ties the maximum.
	rec := httptest.NewRequest(http.MethodPost, "/api/collection",
		strings.NewReader(`{"value":25,"position":"hall","recordedAt":"2024-03-14T11:00:00Z"}`))
	rec.Header.Set("Content-Type", "application/json")
	rr, env := serve(t, httpSrv, rec)
	if got, want := rr.Code, http.StatusOK; got != want {
		t.Fatalf("record status=%d want %d, body=%s", got, want, rr.Body.String())
	}
	var recorded readingJSON
	if err := json.Unmarshal(env.Data, &recorded); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if recorded.ID != 4 || recorded.RecordedAt != "2024-03-14T11:00:00Z" {
		t.Fatalf("recorded=%+v", recorded)
	}

	ms := func(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }
	q := "?startTime=" + ms(day) + "&endTime=" + ms(day.Add(24*time.Hour))

	rr, env = serve(t, httpSrv, httptest.NewRequest(http.MethodGet, "/api/average"+q, nil))
	if got, want := string(env.Data), `{"value":22,"count":4}`; rr.Code != http.StatusOK || got != want {
		t.Fatalf("average: %d %s want %s", rr.Code, got, want)
	}

	rr, env = serve(t, httpSrv, httptest.NewRequest(http.MethodGet, "/api/max"+q, nil))
	var hi extremumJSON
	if err := json.Unmarshal(env.Data, &hi); err != nil || rr.Code != http.StatusOK {
		t.Fatalf("max: %d %s", rr.Code, rr.Body.String())
	}
	if hi.Count != 2 || hi.List[0].RecordedAt != "2024-03-14T10:00:00Z" || hi.List[1].RecordedAt != "2024-03-14T11:00:00Z" {
		t.Fatalf("max=%+v", hi)
	}

	// Start is inclusive, end exclusive.
	q = "?startTime=" + ms(day.Add(10*time.Hour)) + "&endTime=" + ms(day.Add(12*time.Hour))
	rr, env = serve(t, httpSrv, httptest.NewRequest(http.MethodGet, "/api/list"+q, nil))
	var list listJSON
	if err := json.Unmarshal(env.Data, &list); err != nil || rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	if list.Count != 2 || list.List[0].RecordedAt != "2024-03-14T10:00:00Z" {
		t.Fatalf("list=%+v", list)
	}

	rr, env = serve(t, httpSrv, httptest.NewRequest(http.MethodGet, "/api/min?type=FORMATTED&format=YYYY-MM-DD&startTime=2024-03-14&endTime=2024-03-15", nil))
	if got, want := string(env.Data), `{"list":[{"id":1,"value":18,"position":"hall","recordedAt":"2024-03-14T08:00:00Z"}],"count":1,"value":18}`; got != want {
		t.Fatalf("min: %d %s want %s", rr.Code, got, want)
	}

	rr, env = serve(t, httpSrv, httptest.NewRequest(http.MethodGet, "/api/average?type=RELATIVE", nil))
	if rr.Code != http.StatusBadRequest || env.Error == nil || env.Error.Kind != string(service.KindInvalidWindowKind) {
		t.Fatalf("invalid kind: %d %s", rr.Code, rr.Body.String())
	}
}

func TestHTTP_ServiceAsQuerier(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC)
	svc := service.NewTemperatureService(memrepo.New(nil), window.NewResolver(func() time.Time { return now }, time.UTC))
	srv := New(svc, Options{})

	rr, env := serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	if rr.Code != http.StatusNotFound || env.Error == nil || env.Error.Kind != string(service.KindNoReadingsRecorded) {
		t.Fatalf("latest on empty store: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = serve(t, srv, httptest.NewRequest(http.MethodGet, "/api/this-week-average", nil))
	if got, want := string(env.Data), `{"value":null,"count":0}`; rr.Code != http.StatusOK || got != want {
		t.Fatalf("week average: %d %s want %s", rr.Code, got, want)
	}
}
