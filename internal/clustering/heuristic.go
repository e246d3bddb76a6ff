package clustering

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trender/internal/query"
	"trender/internal/types"
)

type HeuristicConfig struct {
	// SimilarityThreshold is the minimum title Jaccard similarity to join a cluster.
	SimilarityThreshold float64
	// Window is how far an item may be from a cluster's time span and still join it.
	Window time.Duration
	// CloseAfter closes clusters that received nothing newer for this long.
	CloseAfter     time.Duration
	MaxClusterSize int
	Now            func() time.Time
}

// Heuristic groups items by title token overlap and publication time.
type Heuristic struct {
	cfg    HeuristicConfig
	nextID atomic.Int64

	mu     sync.Mutex
	topics map[string]*partition
}

func NewHeuristic(cfg HeuristicConfig) *Heuristic {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.Window == 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.CloseAfter == 0 {
		cfg.CloseAfter = 72 * time.Hour
	}
	if cfg.MaxClusterSize == 0 {
		cfg.MaxClusterSize = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Heuristic{
		cfg:    cfg,
		topics: make(map[string]*partition),
	}
}

func (h *Heuristic) Handle(topicKey string) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.topics[topicKey]
	if !ok {
		p = &partition{
			owner:    h,
			topicKey: topicKey,
			clusters: make(map[int64]*entry),
			members:  make(map[string]int64),
		}
		h.topics[topicKey] = p
	}
	return p
}

type entry struct {
	cluster *types.Cluster
	start   time.Time
	end     time.Time
	titles  []map[string]struct{}
	members []string
}

type partition struct {
	owner    *Heuristic
	topicKey string

	mu       sync.Mutex
	clusters map[int64]*entry
	order    []int64
	members  map[string]int64
}

func (p *partition) AddItems(ctx context.Context, items []types.Item) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.owner.cfg.Now()
	p.closeStale(now)

	sorted := append([]types.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return publishedAt(sorted[i], now).Before(publishedAt(sorted[j], now))
	})

	var touched []int64
	seen := make(map[int64]struct{})
	for _, item := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, ok := p.assign(item, now)
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			touched = append(touched, id)
		}
	}
	return touched, nil
}

func (p *partition) GetCluster(ctx context.Context, id int64) (*types.Cluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.clusters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d in topic %s", ErrClusterNotFound, id, p.topicKey)
	}
	return e.cluster.Clone(), nil
}

// assign places item into the first related open cluster or a new one. Items already
// clustered in this topic are ignored.
func (p *partition) assign(item types.Item, now time.Time) (int64, bool) {
	key := memberKey(item)
	if _, exists := p.members[key]; exists {
		return 0, false
	}

	ts := publishedAt(item, now)
	terms := termSet(item.Title)
	cfg := p.owner.cfg

	for _, id := range p.order {
		e := p.clusters[id]
		if !e.cluster.IsOpen() || e.cluster.ItemsCount >= cfg.MaxClusterSize {
			continue
		}
		if !withinWindow(e.start, e.end, ts, cfg.Window) {
			continue
		}
		if !e.related(terms, cfg.SimilarityThreshold) {
			continue
		}
		e.add(item, ts, terms, now)
		e.members = append(e.members, key)
		p.members[key] = id
		return id, true
	}

	id := p.owner.nextID.Add(1)
	e := &entry{
		cluster: &types.Cluster{
			ID:       id,
			TopicKey: p.topicKey,
			Title:    item.Title,
			Status:   types.ClusterOpen,
			Domains:  make(map[string]int),
		},
		start: ts,
		end:   ts,
	}
	e.add(item, ts, terms, now)
	e.members = append(e.members, key)
	p.clusters[id] = e
	p.order = append(p.order, id)
	p.members[key] = id
	return id, true
}

// closeStale closes clusters idle for CloseAfter and forgets closed clusters, along
// with their members, once they are idle for CloseAfter plus Window.
func (p *partition) closeStale(now time.Time) {
	cfg := p.owner.cfg
	evict := cfg.CloseAfter + cfg.Window

	kept := p.order[:0]
	for _, id := range p.order {
		e := p.clusters[id]
		idle := now.Sub(e.end)
		if e.cluster.IsOpen() && idle > cfg.CloseAfter {
			e.cluster.Status = types.ClusterClosed
			e.cluster.UpdatedAt = now
		}
		if !e.cluster.IsOpen() && idle > evict {
			for _, key := range e.members {
				delete(p.members, key)
			}
			delete(p.clusters, id)
			continue
		}
		kept = append(kept, id)
	}
	p.order = kept
}

func (e *entry) add(item types.Item, ts time.Time, terms map[string]struct{}, now time.Time) {
	c := e.cluster
	c.ItemsCount++
	c.ItemIDs = append(c.ItemIDs, item.ID)
	c.Timestamps = append(c.Timestamps, ts)
	if d := item.DomainName(); d != "" {
		c.Domains[d]++
	}
	c.UpdatedAt = now

	if ts.Before(e.start) {
		e.start = ts
	}
	if ts.After(e.end) {
		e.end = ts
	}
	e.titles = append(e.titles, terms)
}

func (e *entry) related(terms map[string]struct{}, threshold float64) bool {
	for _, existing := range e.titles {
		if jaccard(existing, terms) >= threshold {
			return true
		}
	}
	return false
}

func withinWindow(start, end, ts time.Time, window time.Duration) bool {
	if ts.Before(start.Add(-window)) {
		return false
	}
	if ts.After(end.Add(window)) {
		return false
	}
	return true
}

// termSet keeps tokens longer than two characters.
func termSet(text string) map[string]struct{} {
	tokens := query.Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if len(t) <= 2 {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func memberKey(item types.Item) string {
	if item.ID != "" {
		return item.ID
	}
	if item.URL != "" {
		return item.URL
	}
	return item.Title
}

func publishedAt(item types.Item, now time.Time) time.Time {
	if item.PublishedAt.IsZero() {
		return now
	}
	return item.PublishedAt
}
