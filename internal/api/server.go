package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/domain"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

// NewGRPCServer listens on the configured port. A nil listener is replaced by
// a TCP listener; tests pass a bufconn listener.
func NewGRPCServer(cfg *config.APIConfig, missions domain.MissionLifecycle, identity domain.IdentityProvider, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	if lis == nil {
		addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		var err error
		lis, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
		}
	}

	auth := NewAuthInterceptor(cfg, identity)
	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)

	serverOpts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			_ = lis.Close()
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)

	RegisterMissionService(grpcServer, NewMissionGRPCService(missions))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(MissionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		health:   healthSrv,
		listener: lis,
		log:      serverLogger,
	}, nil
}

const grpcStopTimeout = 10 * time.Second

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	switch {
	case cfg.CertFile == "", cfg.KeyFile == "":
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	case cfg.RequireClientCert && cfg.ClientCAFile == "":
		return nil, errors.New("grpc tls: client_ca_file is required for mutual tls")
	}

	keyPair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls keypair: %w", err)
	}
	out := &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{keyPair}}
	if !cfg.RequireClientCert {
		return out, nil
	}

	pool, err := loadCertPool(cfg.ClientCAFile)
	if err != nil {
		return nil, err
	}
	out.ClientCAs = pool
	out.ClientAuth = tls.RequireAndVerifyClientCert
	return out, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grpc tls client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("grpc tls client ca %s: no certificates found", path)
	}
	return pool, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Bool("tls", s.cfg.GRPC.TLS.Enabled).Msg("gRPC mission API listening")
	return s.server.Serve(s.listener)
}

// Shutdown flips health to NOT_SERVING, drains in-flight calls and falls back
// to a hard stop when ctx ends or grpcStopTimeout passes.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.server.GracefulStop()
	}()

	timer := time.NewTimer(grpcStopTimeout)
	defer timer.Stop()

	select {
	case <-drained:
		s.log.Info().Msg("gRPC server stopped")
	case <-ctx.Done():
		s.forceStop("context done")
	case <-timer.C:
		s.forceStop("timeout")
	}
}

func (s *GRPCServer) forceStop(reason string) {
	s.log.Warn().Str("reason", reason).Msg("gRPC drain incomplete, forcing stop")
	s.server.Stop()
}
