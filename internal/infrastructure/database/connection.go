package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/infrastructure/config"
)

// Pool wraps the pgx connection pool with health checking. The ingestion
// pipeline is a single writer, so there is no replica routing.
type Pool struct {
	pool   *pgxpool.Pool
	cfg    *config.DatabaseConfig
	logger *zap.Logger
}

// Connect builds the pool and verifies connectivity before returning.
func Connect(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	// The write path authenticates with the service key; the anon key is
	// for the out-of-scope read layer.
	if cfg.ServiceKey != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = "conflict-ingest"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("database pool initialized",
		zap.Int("max_conns", cfg.MaxOpenConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime))

	return &Pool{pool: pool, cfg: cfg, logger: logger}, nil
}

// Pgx exposes the underlying pool for repositories.
func (p *Pool) Pgx() *pgxpool.Pool {
	return p.pool
}

// HealthCheck verifies the pool is serving connections.
func (p *Pool) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close drains the pool.
func (p *Pool) Close() {
	p.pool.Close()
}
