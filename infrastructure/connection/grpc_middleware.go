package connection

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"chat/infrastructure"
)

// publicMethods don't require authentication
var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
	"/grpc.health.v1.Health/List":  true,
}

// AuthenticationInterceptor is a gRPC interceptor for authentication
func AuthenticationInterceptor(tokens *Tokens) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		defer func() {
			slog.DebugContext(ctx, "grpc call", "method", info.FullMethod, "took", time.Since(start))
		}()

		if publicMethods[info.FullMethod] || strings.HasPrefix(info.FullMethod, "/grpc.reflection.") {
			return handler(ctx, req)
		}

		token, err := extractTokenFromContext(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "Invalid token: %v", err)
		}

		userID, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "Invalid token: %v", err)
		}

		return handler(WithUserID(ctx, userID), req)
	}
}

// extractTokenFromContext extracts the token from the gRPC context
func extractTokenFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", infrastructure.ErrMissingToken
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return "", infrastructure.ErrMissingToken
	}

	return BearerToken(values[0])
}

// BearerToken strips the "Bearer " prefix of an Authorization value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", infrastructure.ErrMissingToken
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", infrastructure.ErrInvalidToken
	}
	return strings.TrimPrefix(header, "Bearer "), nil
}

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the authenticated user ID from the context
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
