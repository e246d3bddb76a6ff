// Package sources adapts external feeds into engine items.
package sources

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"trender/internal/types"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context) (<-chan types.Item, <-chan error)
}

// Collect drains every source concurrently and returns the items newest first, with
// duplicate ids dropped. A failing source is logged and contributes what it sent.
func Collect(ctx context.Context, srcs []Source, logger *slog.Logger) []types.Item {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items []types.Item
	)

	for _, src := range srcs {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			itemChan, errChan := src.Fetch(ctx)
			var local []types.Item
			for item := range itemChan {
				local = append(local, item)
			}
			if err := <-errChan; err != nil {
				logger.Warn("Source fetch failed", "source", src.Name(), "error", err)
			}

			mu.Lock()
			items = append(items, local...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	seen := make(map[string]struct{}, len(items))
	unique := items[:0]
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		unique = append(unique, item)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].PublishedAt.After(unique[j].PublishedAt)
	})
	return unique
}
