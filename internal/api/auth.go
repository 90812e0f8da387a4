package api

import (
	"context"
	"strings"

	"campusrun/internal/config"
	"campusrun/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor resolves the bearer token into an identity and applies the
// per-identity token bucket.
type AuthInterceptor struct {
	cfg      *config.APIConfig
	identity domain.IdentityProvider
	limiter  *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig, identity domain.IdentityProvider) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:      cfg,
		identity: identity,
		limiter:  newRateLimiter(cfg),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		id, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.checkRateLimit(id.UserID); err != nil {
			return nil, err
		}

		return handler(withIdentity(ctx, id), req)
	}
}

const (
	authorizationHeader = "authorization"
	clientKeyUnknown    = "unknown"
)

func isPublicMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.") ||
		strings.HasPrefix(fullMethod, "/grpc.reflection.")
}

func (a *AuthInterceptor) authenticate(ctx context.Context) (domain.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}

	token := bearerToken(first(md.Get(authorizationHeader)))
	if token == "" {
		return domain.Identity{}, status.Error(codes.Unauthenticated, "missing bearer token")
	}

	id, err := a.identity.Resolve(ctx, token)
	if err != nil {
		return domain.Identity{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return id, nil
}

func (a *AuthInterceptor) checkRateLimit(key string) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	if !a.limiter.allow(key) {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
