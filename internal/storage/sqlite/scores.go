package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trender/internal/storage"
	"trender/internal/types"
)

type scoreStore struct {
	db *sql.DB
}

func newScoreStore(db *sql.DB) storage.ScoreStore {
	return &scoreStore{db: db}
}

func (s *scoreStore) SaveScores(ctx context.Context, topicKey string, cluster *types.Cluster, at time.Time) error {
	query := `
		INSERT INTO cluster_scores (
			topic_key, cluster_id, title, items_count,
			score_trend, score_diversity, score_freshness, score_total, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(topic_key, cluster_id) DO UPDATE SET
			title = excluded.title,
			items_count = excluded.items_count,
			score_trend = excluded.score_trend,
			score_diversity = excluded.score_diversity,
			score_freshness = excluded.score_freshness,
			score_total = excluded.score_total,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		topicKey, cluster.ID, cluster.Title, cluster.ItemsCount,
		cluster.ScoreTrend, cluster.ScoreDiversity, cluster.ScoreFreshness, cluster.ScoreTotal,
		at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cluster scores: %w", err)
	}
	return nil
}

func (s *scoreStore) TopScores(ctx context.Context, topicKey string, limit int) ([]storage.ScoreRecord, error) {
	query := `
		SELECT topic_key, cluster_id, title, items_count,
			score_trend, score_diversity, score_freshness, score_total, updated_at
		FROM cluster_scores
		WHERE topic_key = ?
		ORDER BY score_total DESC, items_count DESC, cluster_id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, topicKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster scores: %w", err)
	}
	defer rows.Close()

	var records []storage.ScoreRecord
	for rows.Next() {
		var rec storage.ScoreRecord
		var updated int64
		if err := rows.Scan(
			&rec.TopicKey, &rec.ClusterID, &rec.Title, &rec.ItemsCount,
			&rec.Scores.Trend, &rec.Scores.Diversity, &rec.Scores.Freshness, &rec.Scores.Total,
			&updated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cluster scores: %w", err)
		}
		rec.UpdatedAt = time.Unix(0, updated).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cluster scores: %w", err)
	}
	return records, nil
}

func (s *scoreStore) DeleteOlderThan(ctx context.Context, age time.Duration) error {
	cutoff := time.Now().Add(-age).UnixNano()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cluster_scores WHERE updated_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to delete old cluster scores: %w", err)
	}
	return nil
}
