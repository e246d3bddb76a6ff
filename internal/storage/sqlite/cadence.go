package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trender/internal/cadence"
)

type cadenceStore struct {
	db *sql.DB
}

func newCadenceStore(db *sql.DB) cadence.Store {
	return &cadenceStore{db: db}
}

func (s *cadenceStore) LastRun(ctx context.Context, topicKey string) (time.Time, bool, error) {
	var nanos int64
	err := s.db.QueryRowContext(ctx, `SELECT last_run_at FROM topic_cadence WHERE topic_key = ?`, topicKey).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last run: %w", err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

func (s *cadenceStore) SetLastRun(ctx context.Context, topicKey string, at time.Time) error {
	query := `
		INSERT INTO topic_cadence (topic_key, last_run_at)
		VALUES (?, ?)
		ON CONFLICT(topic_key) DO UPDATE SET last_run_at = excluded.last_run_at
	`

	if _, err := s.db.ExecContext(ctx, query, topicKey, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to store last run: %w", err)
	}
	return nil
}
