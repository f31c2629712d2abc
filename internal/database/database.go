package database

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"

	"valorant-live-tracker/internal/config"
	"valorant-live-tracker/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Connection-scoped settings go in the DSN so every pooled connection gets
// them, not only the one that happened to run a PRAGMA.
var dsnParams = map[string]string{
	"_journal_mode": "WAL",
	"_synchronous":  "NORMAL",
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
	"_cache_size":   "-64000",
	"_txlock":       "immediate",
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the SQLite file at path and migrates it to the latest
// schema.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", path).Msg("connecting to database")

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := tuneSQLite(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to tune SQLite: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database ready")
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	for k, v := range dsnParams {
		q.Set(k, v)
	}
	return "file:" + path + "?" + q.Encode()
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info().Int64("version", version).Msg("migrations completed")
	return nil
}

// tuneSQLite applies the database-wide settings the DSN cannot carry.
func tuneSQLite(db *sql.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"temp_store", "MEMORY"},
		{"mmap_size", "268435456"}, // https://sqlite.org/mmap.html
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug().Str("pragma", pragma.name).Str("value", pragma.value).Msg("SQLite pragma set")
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}
	logger.Debug().Str("journal_mode", mode).Msg("SQLite journal mode")
	return nil
}
