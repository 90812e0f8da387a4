package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"campusrun/internal/config"
	"campusrun/internal/domain"
	"campusrun/internal/service"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		kind   service.Kind
		status int
		code   codes.Code
	}{
		{service.KindForbidden, http.StatusForbidden, codes.PermissionDenied},
		{service.KindInvalidState, http.StatusConflict, codes.FailedPrecondition},
		{service.KindRunnerBusy, http.StatusConflict, codes.FailedPrecondition},
		{service.KindDuplicateApplication, http.StatusConflict, codes.AlreadyExists},
		{service.KindNotApplicant, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{service.KindNotFound, http.StatusNotFound, codes.NotFound},
		{service.KindValidation, http.StatusBadRequest, codes.InvalidArgument},
		{"", http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, httpStatus(tt.kind), tt.kind)
		assert.Equal(t, tt.code, grpcCode(tt.kind), tt.kind)
	}
}

func TestGRPCErrorHidesInternalFailures(t *testing.T) {
	err := grpcError(errors.New("get_mission: disk I/O error"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "disk")

	assert.NoError(t, grpcError(nil))
}

type staticIdentity struct {
	tokens map[string]domain.Identity
}

func (s staticIdentity) Resolve(_ context.Context, token string) (domain.Identity, error) {
	id, ok := s.tokens[token]
	if !ok {
		return domain.Identity{}, errors.New("invalid token")
	}
	return id, nil
}

func TestAuthInterceptor(t *testing.T) {
	cfg := &config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 100}}
	identity := staticIdentity{tokens: map[string]domain.Identity{"tok": {UserID: "student-1", Role: "student"}}}
	interceptor := NewAuthInterceptor(cfg, identity).Unary()

	var seen domain.Identity
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = IdentityFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: MissionMethod("GetMission")}

	t.Run("Success", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer tok"))
		resp, err := interceptor(ctx, nil, info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
		assert.Equal(t, "student-1", seen.UserID)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("WrongScheme", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic tok"))
		_, err := interceptor(ctx, nil, info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("HealthIsPublic", func(t *testing.T) {
		resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(context.Context, any) (any, error) { panic("boom") })
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}
	chained := ChainUnaryInterceptors(mk("a"), mk("b"))
	_, err := chained(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Token abc"))
	assert.Equal(t, "", bearerToken(""))
}

func TestBuildTLSConfigValidation(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.ErrorContains(t, err, "cert_file and key_file")

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", RequireClientCert: true})
	assert.ErrorContains(t, err, "client_ca_file")

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	assert.ErrorContains(t, err, "keypair")
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, " req-42 "))
	assert.Equal(t, "req-42", requestIDFromMetadata(ctx))

	generated := requestIDFromMetadata(context.Background())
	assert.Len(t, generated, 36)
}
