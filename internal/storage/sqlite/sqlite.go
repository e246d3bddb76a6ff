// Package sqlite persists topic cadence and cluster scores in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"trender/internal/cadence"
	"trender/internal/config"
	"trender/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg config.StorageConfig) (storage.StorageInterface, error) {
		return Open(ctx, cfg.Path)
	})
}

type Storage struct {
	conn    *sql.DB
	cadence cadence.Store
	scores  storage.ScoreStore
}

// Open creates the database file and its directory if needed and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	version, err := migrate(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("SQLite storage ready", "path", path, "schema_version", version)

	return &Storage{
		conn:    conn,
		cadence: newCadenceStore(conn),
		scores:  newScoreStore(conn),
	}, nil
}

func migrate(conn *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Storage) GetConnection() *sql.DB {
	return s.conn
}

func (s *Storage) Cadence() cadence.Store {
	return s.cadence
}

func (s *Storage) Scores() storage.ScoreStore {
	return s.scores
}

func (s *Storage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
