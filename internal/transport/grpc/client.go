package grpcserver

import (
	"context"
	"fmt"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/service"
	"github.com/milad/thermo/internal/window"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote TemperatureService and returns the same results and
// *service.Error values as the local service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fromStatus(method, err)
	}
	return out, nil
}

func (c *Client) Record(ctx context.Context, in service.RecordInput) (domain.Reading, error) {
	out, err := c.invoke(ctx, "Record", recordToStruct(in))
	if err != nil {
		return domain.Reading{}, err
	}
	return decoded("Record", out, readingFromStruct)
}

func (c *Client) ListPage(ctx context.Context, in window.Input, pageSize int, pageToken string) (service.ListPageResult, error) {
	req := windowToStruct(in)
	if pageSize != 0 {
		req.Fields[fieldPageSize] = structpb.NewNumberValue(float64(pageSize))
	}
	if pageToken != "" {
		req.Fields[fieldPageToken] = structpb.NewStringValue(pageToken)
	}
	out, err := c.invoke(ctx, "List", req)
	if err != nil {
		return service.ListPageResult{}, err
	}
	return decoded("List", out, listPageFromStruct)
}

func (c *Client) List(ctx context.Context, in window.Input) (domain.ListResult, error) {
	res, err := c.ListPage(ctx, in, 0, "")
	return res.ListResult, err
}

func (c *Client) Latest(ctx context.Context) (domain.Reading, error) {
	out, err := c.invoke(ctx, "Latest", &structpb.Struct{})
	if err != nil {
		return domain.Reading{}, err
	}
	return decoded("Latest", out, readingFromStruct)
}

func (c *Client) Average(ctx context.Context, in window.Input) (domain.ScalarResult, error) {
	out, err := c.invoke(ctx, "Average", windowToStruct(in))
	if err != nil {
		return domain.ScalarResult{}, err
	}
	return decoded("Average", out, scalarFromStruct)
}

func (c *Client) Max(ctx context.Context, in window.Input) (domain.ExtremumResult, error) {
	out, err := c.invoke(ctx, "Max", windowToStruct(in))
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	return decoded("Max", out, extremumFromStruct)
}

func (c *Client) Min(ctx context.Context, in window.Input) (domain.ExtremumResult, error) {
	out, err := c.invoke(ctx, "Min", windowToStruct(in))
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	return decoded("Min", out, extremumFromStruct)
}

func (c *Client) AverageOfWeek(ctx context.Context) (domain.ScalarResult, error) {
	out, err := c.invoke(ctx, "AverageOfWeek", &structpb.Struct{})
	if err != nil {
		return domain.ScalarResult{}, err
	}
	return decoded("AverageOfWeek", out, scalarFromStruct)
}

func decoded[T any](method string, s *structpb.Struct, decode func(*structpb.Struct) (T, error)) (T, error) {
	v, err := decode(s)
	if err != nil {
		var zero T
		return zero, &service.Error{Op: method, Kind: service.KindInternal, Err: fmt.Errorf("decode response: %w", err)}
	}
	return v, nil
}

// remoteError keeps the server's message and unwraps to the sentinel of the
// reported Kind, so errors.Is works across the wire.
type remoteError struct {
	st       *status.Status
	sentinel error
}

func (e *remoteError) Error() string { return e.st.Message() }

func (e *remoteError) Unwrap() error { return e.sentinel }

func (e *remoteError) GRPCStatus() *status.Status { return e.st }

func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &service.Error{Op: method, Kind: service.KindInternal, Err: err}
	}
	kind := kindFromStatus(st)
	sentinel := kind.Err()
	if kind == service.KindCanceled && st.Code() == codes.DeadlineExceeded {
		sentinel = context.DeadlineExceeded
	}
	return &service.Error{Op: method, Kind: kind, Err: &remoteError{st: st, sentinel: sentinel}}
}

func kindFromStatus(st *status.Status) service.Kind {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			if k := service.Kind(info.GetReason()); k.Err() != nil || k == service.KindInternal {
				return k
			}
		}
	}
	// Failures raised by the transport itself carry no ErrorInfo.
	switch st.Code() {
	case codes.Unavailable:
		return service.KindStorageUnavailable
	case codes.Canceled, codes.DeadlineExceeded:
		return service.KindCanceled
	default:
		return service.KindInternal
	}
}
