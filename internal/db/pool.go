package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var errPoolSQLite = errors.New("pgx pool needs the postgres driver")

// Pool is the raw pgx pool behind COPY tag imports.
type Pool struct {
	*pgxpool.Pool
}

func Connect(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.IsSQLite() {
		return nil, errPoolSQLite
	}
	conf, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	conf.MaxConns = 4
	if cfg.MaxConns > 0 {
		conf.MaxConns = cfg.MaxConns
	}
	conf.MaxConnIdleTime = 10 * time.Minute
	conf.HealthCheckPeriod = 30 * time.Second

	p, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping pool: %w", err)
	}
	return &Pool{Pool: p}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// TagWriter picks COPY on postgres and batched inserts on sqlite. The
// returned close func releases the pool, if one was opened.
func (d *Database) TagWriter(ctx context.Context, cfg Config) (TagWriter, func(), error) {
	if cfg.IsSQLite() {
		return NewGormTagWriter(d.DB), func() {}, nil
	}
	p, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
