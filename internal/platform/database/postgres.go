package database

import (
	"context"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"competition-voting/internal/retry"
)

// NewPostgres opens a pgx-backed pool and waits until the server answers.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	p := retry.StartupPolicy
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		slog.Warn("database not ready", "attempt", attempt, "retry_in", wait, "error", err)
	}
	err = retry.Do(ctx, p, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
