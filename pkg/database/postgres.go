package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/filemgr/pkg/config"
	appErrors "github.com/noah-isme/filemgr/pkg/errors"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the backing store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", DriverPostgres:
		return NewPostgres(cfg)
	case DriverSQLite:
		return NewSQLite(cfg.Path)
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unsupported database driver %q", cfg.Driver)
	}
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrConnection, err, "open postgres %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, appErrors.WrapAs(appErrors.ErrConnection, err, "ping postgres %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	}

	return db, nil
}

// NewSQLite opens an embedded catalog database at path.
func NewSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sqlite path required")
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrConnection, err, "open sqlite %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, appErrors.WrapAs(appErrors.ErrConnection, err, "ping sqlite %s", path)
	}
	return db, nil
}
