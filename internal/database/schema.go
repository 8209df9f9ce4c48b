package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the statements Migrate applies, in order. Every statement
// is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(120)    NOT NULL,
		email         VARCHAR(191)    NOT NULL UNIQUE,
		avatar        VARCHAR(512)    NOT NULL DEFAULT '',
		password_hash VARCHAR(255)    NOT NULL,
		created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_hash CHAR(64) NOT NULL PRIMARY KEY,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		booking_id       VARCHAR(191)    NOT NULL UNIQUE,
		user_id          BIGINT UNSIGNED NOT NULL,
		movie_id         VARCHAR(64)     NOT NULL,
		movie_title      VARCHAR(255)    NOT NULL,
		movie_poster     VARCHAR(512)    NOT NULL DEFAULT '',
		show_date        VARCHAR(10)     NOT NULL,
		show_time        VARCHAR(5)      NOT NULL,
		quantity         INT UNSIGNED    NOT NULL,
		price_per_ticket DECIMAL(10,2)   NOT NULL,
		total_price      DECIMAL(10,2)   NOT NULL,
		ticket_id        VARCHAR(191)    NOT NULL DEFAULT '',
		status           VARCHAR(16)     NOT NULL DEFAULT 'confirmed',
		created_at       DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_bookings_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS kv_store (
		k          VARCHAR(191) NOT NULL PRIMARY KEY,
		v          MEDIUMTEXT   NOT NULL,
		updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables used by the API server and the SQL storage
// driver.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
