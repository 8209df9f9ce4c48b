package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-cart/internal/config"
	"github.com/iliyamo/cinema-ticket-cart/internal/database"
)

// Open builds the Store selected by cfg.Driver. The returned io.Closer
// releases the underlying connection and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, io.Closer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), io.NopCloser(nil), nil
	case "file":
		if cfg.Path == "" {
			return nil, nil, errors.New("storage: file driver needs a path")
		}
		return NewFile(cfg.Path), io.NopCloser(nil), nil
	case "redis":
		rdb := redis.NewClient(config.RedisOptions())
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("storage: redis: %w", err)
		}
		return NewRedis(rdb, cfg.RedisPrefix), rdb, nil
	case "mysql":
		db, err := database.Open(ctx, database.Conn{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName})
		if err != nil {
			return nil, nil, fmt.Errorf("storage: mysql: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return NewSQL(db), db, nil
	}
	return nil, nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
}
