package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"intelligencePlatform/internal/auth"
	"intelligencePlatform/internal/config"
	"intelligencePlatform/internal/db"
	grpcserver "intelligencePlatform/internal/grpc"
	"intelligencePlatform/internal/hasher"
	"intelligencePlatform/internal/logger"
	"intelligencePlatform/internal/service"
	"intelligencePlatform/repository"
)

func main() {
	rollback := flag.Bool("rollback", false, "revert the last schema migration and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, log, *rollback)
	if err != nil {
		log.Error("server exited", zap.Error(err))
	}
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource opened after the logger, so deferred cleanup happens on all exits.
func run(cfg *config.Config, log *zap.Logger, rollback bool) error {
	log.Info("configuration loaded", zap.Stringer("config", cfg))

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error("close db", zap.Error(err))
		}
	}()

	if rollback {
		if err := db.RollbackLast(d); err != nil {
			return fmt.Errorf("rollback migration: %w", err)
		}
		log.Info("last migration rolled back")
		return nil
	}

	users := repository.NewUserRepository(d, log.Named("users"))
	h, err := hasher.New(cfg.Auth.BcryptCost, log.Named("hasher"))
	if err != nil {
		return fmt.Errorf("init hasher: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}
	svc := service.NewAuthService(users, h, log.Named("auth"))

	if cfg.Legacy.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := svc.MigrateLegacyFile(ctx, cfg.Legacy.UsersFile)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate legacy users (%d migrated): %w", n, err)
		}
	}

	// Start gRPC
	shutdown, err := grpcserver.StartGRPC(cfg, grpcserver.Deps{
		Service:    svc,
		Users:      users,
		Issuer:     issuer,
		LegacyFile: cfg.Legacy.UsersFile,
	}, log.Named("grpc"))
	if err != nil {
		return fmt.Errorf("start grpc: %w", err)
	}
	log.Info("gRPC server listening", zap.String("address", cfg.GRPC.Address))

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
