package grpcapi

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/linkgate/linkgate/internal/model"
)

// NewServer creates a gRPC server with the link and QR services, the
// standard health service, and logging, recovery and error interceptors.
// Either service may be nil.
func NewServer(links LinkShortenerServer, qrs QrCodeGeneratorServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	logger = logger.With("component", "grpc")
	opts = append(opts, grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		recoveryInterceptor(logger),
		errorInterceptor(logger),
	))

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	if links != nil {
		srv.RegisterService(&LinkShortenerServiceDesc, links)
		hs.SetServingStatus(LinkServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	if qrs != nil {
		srv.RegisterService(&QrCodeGeneratorServiceDesc, qrs)
		hs.SetServingStatus(QRServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// errorInterceptor converts domain errors into status errors with the
// error trailer set.
func errorInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if model.KindOf(err) == model.KindInternal {
			logger.Error("grpc_request_failed", "method", info.FullMethod, "error", err)
		}
		return nil, toStatus(ctx, err)
	}
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic_recovered",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = toStatus(ctx, model.ErrInternal)
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelInfo
		switch code {
		case codes.OK, codes.NotFound, codes.AlreadyExists:
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			level = slog.LevelError
		default:
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "grpc_request",
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
		return resp, err
	}
}
