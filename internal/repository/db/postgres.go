package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"procurement/internal/config"
)

func NewPostgresDB(ctx context.Context, cfg *config.PostgresConfig, log *zap.Logger) (*sqlx.DB, error) {
	log.Info("connecting to postgres", zap.Int("max_open_conns", cfg.MaxOpenConns))

	db, err := sqlx.Open("postgres", cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}

	return db, nil
}
