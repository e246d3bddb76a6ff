// Package clustering defines the clustering capability the engine drives and ships a
// heuristic in-memory implementation of it.
package clustering

import (
	"context"
	"errors"

	"trender/internal/types"
)

var ErrClusterNotFound = errors.New("cluster not found")

// Clusterer hands out per-topic clustering handles.
type Clusterer interface {
	Handle(topicKey string) Handle
}

// Handle is a clustering view scoped to one topic.
type Handle interface {
	// AddItems assigns items to clusters and returns the ids of every cluster it touched.
	AddItems(ctx context.Context, items []types.Item) ([]int64, error)
	GetCluster(ctx context.Context, id int64) (*types.Cluster, error)
}
