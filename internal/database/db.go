package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/cinema-live-seats/internal/config"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Open connects to the database selected by cfg.DBDriver and verifies the
// connection.  When cfg.DBMigrate is set, pending migrations are applied.
func Open(cfg config.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = OpenSQLite(cfg.DBPath)
	default:
		db, err = OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if err != nil {
		return nil, err
	}
	if cfg.DBMigrate {
		if err := Migrate(db, cfg.DBDriver); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database at path (":memory:" for an in-memory
// database).  A single connection is used: repositories never touch the
// pool while a transaction is open, and SQLite has one writer anyway.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded migrations for driver ("mysql" or "sqlite").
func Migrate(db *sql.DB, driver string) error {
	dialect, dir := "mysql", "migrations/mysql"
	if driver == "sqlite" {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
