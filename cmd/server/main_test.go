package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"intelligencePlatform/internal/config"
	"intelligencePlatform/internal/db"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "platform.db")},
		GRPC:     config.GRPCConfig{Address: "127.0.0.1:0"},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", SessionTTL: time.Hour, BcryptCost: 4},
		Logging:  config.LoggingConfig{Level: "info"},
	}
}

func TestRun_StartupErrorsReturnAndCloseDB(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config, *testing.T)
		expectedError string
	}{
		{
			name:          "bad bcrypt cost",
			mutate:        func(c *config.Config, _ *testing.T) { c.Auth.BcryptCost = 99 },
			expectedError: "init hasher",
		},
		{
			name:          "empty jwt secret",
			mutate:        func(c *config.Config, _ *testing.T) { c.Auth.JWTSecret = "" },
			expectedError: "init token issuer",
		},
		{
			name: "unreadable legacy file",
			mutate: func(c *config.Config, t *testing.T) {
				c.Legacy = config.LegacyConfig{UsersFile: t.TempDir(), MigrateOnStart: true}
			},
			expectedError: "migrate legacy users",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg, t)
			core, logs := observer.New(zap.InfoLevel)

			err := run(cfg, zap.New(core), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.Zero(t, logs.FilterMessage("close db").Len())
		})
	}
}

func TestRun_Rollback(t *testing.T) {
	cfg := testConfig(t)

	require.NoError(t, run(cfg, zap.NewNop(), true))

	d, err := sql.Open("sqlite3", cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	version, _, err := db.Version(d)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
