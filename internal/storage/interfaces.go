package storage

import (
	"context"
	"database/sql"
	"time"

	"trender/internal/cadence"
	"trender/internal/types"
)

type StorageInterface interface {
	GetConnection() *sql.DB
	Cadence() cadence.Store
	Scores() ScoreStore
	Close(ctx context.Context) error
}

// ScoreRecord is the persisted score snapshot of one cluster.
type ScoreRecord struct {
	TopicKey   string
	ClusterID  int64
	Title      string
	ItemsCount int
	Scores     types.Scores
	UpdatedAt  time.Time
}

type ScoreStore interface {
	SaveScores(ctx context.Context, topicKey string, cluster *types.Cluster, at time.Time) error
	TopScores(ctx context.Context, topicKey string, limit int) ([]ScoreRecord, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) error
}
