package scoring

import (
	"sort"

	"trender/internal/types"
	"trender/internal/utils"
)

// Rank returns the top k open clusters by total score. Ties go to the larger cluster,
// then to the lower id.
func Rank(clusters []*types.Cluster, k int) []*types.Cluster {
	if k <= 0 {
		return nil
	}

	open := utils.FilterArray(clusters, func(c *types.Cluster) bool {
		return c != nil && c.IsOpen()
	})

	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i], open[j]
		if a.ScoreTotal != b.ScoreTotal {
			return a.ScoreTotal > b.ScoreTotal
		}
		if a.ItemsCount != b.ItemsCount {
			return a.ItemsCount > b.ItemsCount
		}
		return a.ID < b.ID
	})

	if len(open) > k {
		open = open[:k]
	}
	return open
}
