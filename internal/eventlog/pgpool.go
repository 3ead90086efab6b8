package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPgMaxConns = 4

// PgOptions describes the pool behind the Postgres event sink.
type PgOptions struct {
	DSN      string
	MaxConns int32
	AppName  string
}

func (o PgOptions) poolConfig() (*pgxpool.Config, error) {
	if o.DSN == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	cfg, err := pgxpool.ParseConfig(o.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = o.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultPgMaxConns
	}
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 15 * time.Minute
	if o.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = o.AppName
	}
	return cfg, nil
}

// OpenPostgres connects the event log pool and makes sure event_logs exists.
// The caller closes the returned pool, which also serves readiness checks.
func OpenPostgres(ctx context.Context, opts PgOptions) (*pgxpool.Pool, *PgRecorder, error) {
	cfg, err := opts.poolConfig()
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create event log pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	rec := NewPgRecorder(pool)
	if err := rec.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, rec, nil
}
