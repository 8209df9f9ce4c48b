package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestDSN(t *testing.T) {
	for _, pass := range []string{"", "secret"} {
		c := Conn{User: "app", Pass: pass, Host: "db", Port: "3306", Name: "cinema"}
		mc, err := mysql.ParseDSN(c.DSN())
		if err != nil {
			t.Fatalf("parse %q: %v", c.DSN(), err)
		}
		if mc.User != "app" || mc.Passwd != pass || mc.Addr != "db:3306" || mc.DBName != "cinema" {
			t.Fatalf("config = %+v", mc)
		}
		if !mc.ParseTime || mc.Loc != time.UTC || !strings.Contains(c.DSN(), "charset=utf8mb4") {
			t.Fatalf("options = parseTime %v loc %v dsn %q", mc.ParseTime, mc.Loc, c.DSN())
		}
	}
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "revoked_tokens", "bookings", "kv_store"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS revoked_tokens").WillReturnError(errors.New("boom"))

	if err := Migrate(context.Background(), db); err == nil {
		t.Fatalf("expected migrate error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
