package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/milad/thermo/internal/service"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrorDomain is the ErrorInfo domain attached to every failed call.
const ErrorDomain = "thermo"

type Server struct {
	svc *service.TemperatureService
}

func New(svc *service.TemperatureService) *Server {
	return &Server{svc: svc}
}

func (s *Server) Record(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := recordFromStruct(req)
	if err != nil {
		return nil, toStatus(&service.Error{Op: "record", Kind: service.KindOf(err), Err: err})
	}
	r, err := s.svc.Record(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return readingToStruct(r), nil
}

func (s *Server) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	size, _, err := number(req, fieldPageSize)
	if err != nil || size != float64(int(size)) {
		err := fmt.Errorf("%w: pageSize must be an integer", service.ErrInvalidPagination)
		return nil, toStatus(&service.Error{Op: "list", Kind: service.KindInvalidPagination, Err: err})
	}
	res, err := s.svc.ListPage(ctx, windowFromStruct(req), int(size), str(req, fieldPageToken))
	if err != nil {
		return nil, toStatus(err)
	}
	return listPageToStruct(res), nil
}

func (s *Server) Latest(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	r, err := s.svc.Latest(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return readingToStruct(r), nil
}

func (s *Server) Average(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Average(ctx, windowFromStruct(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return scalarToStruct(res), nil
}

func (s *Server) Max(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Max(ctx, windowFromStruct(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return extremumToStruct(res), nil
}

func (s *Server) Min(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.Min(ctx, windowFromStruct(req))
	if err != nil {
		return nil, toStatus(err)
	}
	return extremumToStruct(res), nil
}

func (s *Server) AverageOfWeek(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.AverageOfWeek(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return scalarToStruct(res), nil
}

// toStatus converts a service failure into a gRPC status whose ErrorInfo
// reason is the failure Kind.
func toStatus(err error) error {
	kind := service.KindOf(err)
	code := codes.Internal
	msg := "internal error"
	switch kind {
	case service.KindInvalidWindowKind, service.KindInvalidDateFormat,
		service.KindInvalidReading, service.KindInvalidPagination:
		code, msg = codes.InvalidArgument, err.Error()
	case service.KindStorageUnavailable:
		code, msg = codes.Unavailable, "storage unavailable"
	case service.KindNoReadingsRecorded:
		code, msg = codes.NotFound, err.Error()
	case service.KindCanceled:
		code, msg = codes.Canceled, err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			code = codes.DeadlineExceeded
		}
	}
	st := status.New(code, msg)
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: string(kind), Domain: ErrorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// LoggingInterceptor logs every call with its status code and latency.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if code == codes.Internal || code == codes.Unavailable {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc call",
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start).Truncate(time.Microsecond),
		)
		return resp, err
	}
}
