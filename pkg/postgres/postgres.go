package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN          string        `envconfig:"DSN"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `split_words:"true" default:"10s"`
	WriteTimeout time.Duration `split_words:"true" default:"10s"`
	MaxOpenConns int           `split_words:"true" default:"4"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

func (c Config) options() []pgdriver.Option {
	return []pgdriver.Option{
		pgdriver.WithDSN(strings.TrimSpace(c.DSN)),
		pgdriver.WithDialTimeout(c.DialTimeout),
		pgdriver.WithReadTimeout(c.ReadTimeout),
		pgdriver.WithWriteTimeout(c.WriteTimeout),
	}
}

// New opens a bun handle and verifies the connection.
func New(ctx context.Context, cfg Config) (*bun.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(cfg.options()...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}
