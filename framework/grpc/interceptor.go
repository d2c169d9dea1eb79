// Package authgrpc adapts the authentication gate to gRPC servers. The
// bearer token travels in the "authorization" metadata key; rejections are
// reported as gRPC status codes mirroring the HTTP mapping (Unavailable for
// invalid configuration, Unauthenticated for token failures,
// PermissionDenied from the role guard).
package authgrpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/goalgrid/authgate"
)

// TokenFromMetadata extracts the bearer token from incoming metadata. Like
// the HTTP extractors, an absent token is ("", nil); only a malformed
// authorization value is an error.
func TokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", nil
	}
	parts := strings.Fields(values[0])
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("authorization metadata format must be Bearer {token}")
	}
	return parts[1], nil
}

// UnaryServerInterceptor verifies the token on every unary call and attaches
// the principal to the handler context. Methods listed in excludedMethods
// (full method names, e.g. "/grid.v1.Health/Check") skip verification.
func UnaryServerInterceptor(gate *authgate.Middleware, excludedMethods ...string) grpc.UnaryServerInterceptor {
	excluded := make(map[string]struct{}, len(excludedMethods))
	for _, m := range excludedMethods {
		excluded[m] = struct{}{}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, skip := excluded[info.FullMethod]; skip {
			return handler(ctx, req)
		}

		authedCtx, err := authenticate(ctx, gate)
		if err != nil {
			return nil, err
		}
		return handler(authedCtx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(gate *authgate.Middleware, excludedMethods ...string) grpc.StreamServerInterceptor {
	excluded := make(map[string]struct{}, len(excludedMethods))
	for _, m := range excludedMethods {
		excluded[m] = struct{}{}
	}

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, skip := excluded[info.FullMethod]; skip {
			return handler(srv, ss)
		}

		authedCtx, err := authenticate(ss.Context(), gate)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: authedCtx})
	}
}

// RequireRole returns a unary interceptor enforcing the role guard after
// authentication. Chain it behind UnaryServerInterceptor.
func RequireRole(expected string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		p, ok := authgate.FromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, authgate.Reason(authgate.ErrUnauthenticated))
		}
		if p.Role != expected {
			return nil, status.Error(codes.PermissionDenied, authgate.Reason(authgate.ErrInsufficientRole))
		}
		return handler(ctx, req)
	}
}

func authenticate(ctx context.Context, gate *authgate.Middleware) (context.Context, error) {
	token, err := TokenFromMetadata(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	p, err := gate.Authenticate(ctx, token)
	if err != nil {
		return nil, status.Error(codeFor(err), authgate.Reason(err))
	}
	return authgate.NewContext(ctx, p), nil
}

func codeFor(err error) codes.Code {
	if errors.Is(err, authgate.ErrConfigInvalid) {
		return codes.Unavailable
	}
	return codes.Unauthenticated
}

// wrappedServerStream overrides the stream context with the authenticated
// one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context { return w.ctx }
