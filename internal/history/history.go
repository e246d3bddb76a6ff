// Package history keeps a short rolling record of per-cluster item counts.
package history

import (
	"context"
	"strconv"
	"time"
)

const (
	// MaxPoints is the number of observations kept per cluster.
	MaxPoints = 30
	// TTL is how long a cluster's history survives without a new observation.
	TTL = 30 * 24 * time.Hour

	KeyPrefix = "cluster_history:"
)

// Store records cluster sizes over time. Implementations never surface errors:
// a failing backend degrades to an empty or in-memory history.
type Store interface {
	Record(ctx context.Context, clusterID int64, count int, now time.Time)
	// Window returns at most MaxPoints counts, most recent last.
	Window(ctx context.Context, clusterID int64) []int
}

func Key(clusterID int64) string {
	return KeyPrefix + strconv.FormatInt(clusterID, 10)
}

func trim(points []int) []int {
	if len(points) <= MaxPoints {
		return points
	}
	return points[len(points)-MaxPoints:]
}
