package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// UnaryLoggingInterceptor logs method, caller and outcome of each request.
// It runs after the auth interceptor so the user id is known.
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("user_id", domain.UserIDFromContext(ctx)),
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", st.Code().String()),
		}

		if err != nil {
			fields = append(fields, zap.Error(err))
			log.Warn("gRPC request failed", fields...)
		} else {
			log.Debug("gRPC request completed", fields...)
		}

		return resp, err
	}
}
