package history

import (
	"context"
	"log/slog"
	"time"

	"trender/internal/cache"
)

type MemoryStore struct {
	points *cache.Cache[int64, []int]
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		points: cache.New[int64, []int](cache.Options{TTL: TTL, Logger: logger}, Key),
	}
}

func (s *MemoryStore) Record(ctx context.Context, clusterID int64, count int, now time.Time) {
	s.points.Update(clusterID, TTL, func(cur []int, _ bool) []int {
		next := make([]int, 0, len(cur)+1)
		next = append(next, cur...)
		next = append(next, count)
		return trim(next)
	})
}

func (s *MemoryStore) Window(ctx context.Context, clusterID int64) []int {
	points, ok := s.points.Get(clusterID)
	if !ok {
		return nil
	}
	return append([]int(nil), points...)
}

func (s *MemoryStore) Close() error {
	return s.points.Close()
}
