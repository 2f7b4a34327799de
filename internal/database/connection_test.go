package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/portal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_AppliesLimits(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{
		Host:              "db.internal",
		Port:              5433,
		User:              "portal",
		Password:          "s3cret word",
		Name:              "portal",
		SSLMode:           "require",
		MaxConns:          8,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   10 * time.Minute,
		HealthCheckPeriod: time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "portal", pc.ConnConfig.Database)
	assert.Equal(t, "s3cret word", pc.ConnConfig.Password)
	assert.Equal(t, int32(8), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, time.Minute, pc.HealthCheckPeriod)
}

func TestPoolConfig_EmptyPasswordAndDefaults(t *testing.T) {
	pc, err := poolConfig(&config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Name: "portal", SSLMode: "disable",
		MinConns: 50,
	})
	require.NoError(t, err)

	assert.Empty(t, pc.ConnConfig.Password)
	assert.Equal(t, "portal", pc.ConnConfig.Database)
	assert.Equal(t, pc.MaxConns, pc.MinConns, "min is capped by max")
}

func TestConnectPostgres_GivesUpWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// Nothing listens on port 1.
	_, err := ConnectPostgres(ctx, &config.DatabaseConfig{
		Host: "127.0.0.1", Port: 1, User: "postgres", Name: "portal", SSLMode: "disable",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres after")
}
