package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"intelligencePlatform/internal/auth"
	"intelligencePlatform/internal/config"
	"intelligencePlatform/internal/service"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// publicMethods run without a session token.
var publicMethods = []string{
	methodRegister,
	methodLogin,
	methodLogout,
	methodExists,
	healthCheckMethod,
}

// Deps bundles what the services need.
type Deps struct {
	Service    *service.AuthService
	Users      auth.UserLookup
	Issuer     *auth.TokenIssuer
	LegacyFile string
}

// NewServer builds a gRPC server with AuthService, AdminService and health registered.
// The returned health server should be shut down before the gRPC server stops.
func NewServer(deps Deps, logger *zap.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoveryInterceptor(logger),
		loggingInterceptor(logger),
		auth.NewUnaryAuthInterceptor(deps.Issuer, publicMethods...),
	))

	RegisterAuthServiceServer(srv, &AuthServer{Svc: deps.Service, Users: deps.Users, Issuer: deps.Issuer})
	RegisterAdminServiceServer(srv, &AdminServer{Svc: deps.Service, Users: deps.Users, LegacyFile: deps.LegacyFile})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(authServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(adminServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv, hs
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, deps Deps, logger *zap.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv, hs := NewServer(deps, logger)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc serve stopped", zap.Error(err))
		}
	}()

	return func(ctx context.Context) error {
		hs.Shutdown()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
