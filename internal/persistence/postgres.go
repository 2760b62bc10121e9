package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/thelewala-agent/internal/config"
)

const (
	// clientName identifies agent connections on shared servers.
	clientName = "thelewala-agent"

	maxLedgerConns       = 4
	ledgerConnectTimeout = 5 * time.Second
	ledgerHealthCheck    = time.Minute
)

// Postgres holds the optional fleet ledger pool. Pool is nil when no DSN is
// configured or the server could not be reached at startup; the ledger then
// stays in SQLite.
type Postgres struct {
	Pool *pgxpool.Pool
}

// ledgerPoolConfig sizes the pool for a single device. The agent writes one
// subscription at a time, so a few lazily opened connections are plenty.
func ledgerPoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = clampConns(cfg.MaxConns, 1, maxLedgerConns)
	poolCfg.MinConns = clampConns(cfg.MinConns, 0, poolCfg.MaxConns)
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	poolCfg.HealthCheckPeriod = ledgerHealthCheck

	conn := poolCfg.ConnConfig
	if conn.ConnectTimeout <= 0 {
		conn.ConnectTimeout = ledgerConnectTimeout
	}
	if conn.RuntimeParams == nil {
		conn.RuntimeParams = map[string]string{}
	}
	if conn.RuntimeParams["application_name"] == "" {
		conn.RuntimeParams["application_name"] = clientName
	}
	return poolCfg, nil
}

func clampConns(n, lo, hi int32) int32 {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// NewPostgres opens the ledger pool. A malformed DSN is a configuration
// error; an unreachable server is logged and leaves Pool nil.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Info("POSTGRES_DSN not provided; ledger stays on device")
		return &Postgres{}, nil
	}

	poolCfg, err := ledgerPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, poolCfg.ConnConfig.ConnectTimeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		logger.Warn("ledger database unreachable; using on-device ledger", zap.Error(err))
		return &Postgres{}, nil
	}

	logger.Info("connected to ledger database",
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Duration("duration", time.Since(start)))
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("ledger database not connected")
	}
	return p.Pool.Ping(ctx)
}

// PoolHandle returns the pool, or nil when the ledger is on device.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}
