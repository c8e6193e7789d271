package httpserver

import (
	"context"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/service"
	"github.com/milad/thermo/internal/window"
)

// Querier is what the HTTP layer needs from the temperature service. Both
// *service.TemperatureService and the gRPC client satisfy it.
type Querier interface {
	Record(ctx context.Context, in service.RecordInput) (domain.Reading, error)
	ListPage(ctx context.Context, in window.Input, pageSize int, pageToken string) (service.ListPageResult, error)
	Latest(ctx context.Context) (domain.Reading, error)
	Average(ctx context.Context, in window.Input) (domain.ScalarResult, error)
	Max(ctx context.Context, in window.Input) (domain.ExtremumResult, error)
	Min(ctx context.Context, in window.Input) (domain.ExtremumResult, error)
	AverageOfWeek(ctx context.Context) (domain.ScalarResult, error)
}
