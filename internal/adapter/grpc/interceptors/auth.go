package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

type contextKey string

const UserRoleKey contextKey = "user_role"

// RoleFromContext returns the role injected by the auth interceptor.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// UnaryAuthInterceptor validates the bearer token in the "authorization"
// metadata through the auth service, so revoked tokens are rejected too.
func UnaryAuthInterceptor(auth ports.AuthService) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// Health probes are unauthenticated
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader[0], "Bearer ")

		user, err := auth.ValidateToken(ctx, tokenString)
		if err != nil || user == nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = domain.WithUserID(ctx, user.ID)
		ctx = context.WithValue(ctx, UserRoleKey, string(user.Role))

		return handler(ctx, req)
	}
}
