package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/portal/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxPingDelay = 4 * time.Second

// DB is the Postgres pool behind the JSONB document store.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// ConnectPostgres opens the pool and pings the server, backing off between
// attempts until ctx is done.
func ConnectPostgres(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	delay := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := pool.Ping(ctx)
		if err == nil {
			break
		}
		logger.Warn("postgres not ready",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("ping postgres after %d attempts: %w", attempt, err)
		case <-time.After(delay):
		}
		delay = min(delay*2, maxPingDelay)
	}

	logger.Info("postgres pool ready",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Name),
		slog.Int("max_conns", int(pc.MaxConns)),
	)
	return &DB{Pool: pool, logger: logger}, nil
}

// poolConfig applies the configured limits to the parsed DSN. Zero limits keep
// the pgx defaults.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = min(cfg.MinConns, pc.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	return pc, nil
}

// FromPool wraps a pool created elsewhere, e.g. against a test container.
func FromPool(pool *pgxpool.Pool, logger *slog.Logger) *DB {
	return &DB{Pool: pool, logger: logger}
}

func (db *DB) Close() {
	stat := db.Pool.Stat()
	db.logger.Info("closing postgres pool",
		slog.Int("acquired", int(stat.AcquiredConns())),
		slog.Int("total", int(stat.TotalConns())),
	)
	db.Pool.Close()
}

// HealthCheck pings with a short deadline for /health.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	return nil
}
