package trender

import (
	"context"
	"errors"
	"testing"
	"time"

	"trender/internal/cadence"
	"trender/internal/clustering"
	"trender/internal/history"
	"trender/internal/matcher"
	"trender/internal/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func aiTopic() types.TopicConfig {
	return types.TopicConfig{
		Name:           "AI & Tech",
		TopicKey:       "ai_tech",
		Queries:        []string{`"machine learning"`, "neural NEAR/3 networks"},
		CadenceMinutes: 30,
		MaxPostsPerRun: 20,
		BoostFactor:    1.0,
		Enabled:        true,
	}
}

func sampleItems() []types.Item {
	return []types.Item{
		{ID: "1", Title: "New machine learning model released", Domain: "a.com", PublishedAt: testNow},
		{ID: "2", Title: "Neural", Summary: "deep networks", Domain: "b.com", PublishedAt: testNow},
		{ID: "3", Title: "Stock market rallies", Domain: "c.com", PublishedAt: testNow},
	}
}

func newTestManager(c clustering.Clusterer, cad *cadence.Manager, hist history.Store) *Manager {
	return NewManager(ManagerOptions{
		Config:    Config{MaxClustersPerTopic: 5, ClusterTimeout: 200 * time.Millisecond},
		Clusterer: c,
		History:   hist,
		Cadence:   cad,
	})
}

func TestRunTopicEndToEnd(t *testing.T) {
	ctx := context.Background()
	cad := cadence.NewManager(nil)
	hist := history.NewMemoryStore(nil)
	h := clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return testNow }})
	m := newTestManager(h, cad, hist)
	topic := aiTopic()

	out := m.RunTopic(ctx, matcher.New(topic, nil), sampleItems(), testNow)

	if out.Status != StatusProcessed {
		t.Fatalf("expected processed, got %s (%v)", out.Status, out.Err)
	}
	if out.ItemsMatched != 2 {
		t.Errorf("expected 2 items matched, got %d", out.ItemsMatched)
	}
	if len(out.TopClusters) == 0 || len(out.TopClusters) > 5 {
		t.Fatalf("expected 1..5 top clusters, got %d", len(out.TopClusters))
	}
	for _, c := range out.TopClusters {
		if c.ScoreTotal <= 0 {
			t.Errorf("cluster %d was not scored", c.ID)
		}
		if got := hist.Window(ctx, c.ID); len(got) != 1 || got[0] != c.ItemsCount {
			t.Errorf("expected history [%d] for cluster %d, got %v", c.ItemsCount, c.ID, got)
		}
	}

	due, _ := cad.IsDue(ctx, topic, testNow.Add(29*time.Minute))
	if due {
		t.Error("topic should not be due 29 minutes after a successful run")
	}

	second := m.RunTopic(ctx, matcher.New(topic, nil), sampleItems(), testNow.Add(10*time.Minute))
	if second.Status != StatusSkipped || second.SkippedReason != SkipCadenceNotMet {
		t.Errorf("expected cadence skip, got %s/%s", second.Status, second.SkippedReason)
	}
}

func TestRunTopicClustersExactlyMatchedItems(t *testing.T) {
	ctx := context.Background()
	cad := cadence.NewManager(nil)
	fc := newFakeClusterer()
	m := newTestManager(fc, cad, nil)
	topic := aiTopic()
	topic.Queries = []string{`"machine learning"`}

	items := []types.Item{
		{ID: "1", Title: "New machine learning model released", Domain: "a.com", PublishedAt: testNow},
		{ID: "2", Title: "Why Machine Learning needs better data", Domain: "b.com", PublishedAt: testNow},
		{ID: "3", Title: "Stock market rallies", Domain: "c.com", PublishedAt: testNow},
	}

	if due, _ := cad.IsDue(ctx, topic, testNow); !due {
		t.Fatal("a topic that never ran should be due")
	}

	out := m.RunTopic(ctx, matcher.New(topic, nil), items, testNow)
	if out.Status != StatusProcessed || out.ItemsMatched != 2 {
		t.Fatalf("expected processed with 2 matches, got %s/%d (%v)", out.Status, out.ItemsMatched, out.Err)
	}

	got := fc.handle.added
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("expected items 1 and 2 to reach clustering, got %+v", got)
	}

	if due, _ := cad.IsDue(ctx, topic, testNow.Add(time.Minute)); due {
		t.Error("cadence should be marked as run")
	}
}

func TestRunTopicDisabled(t *testing.T) {
	topic := aiTopic()
	topic.Enabled = false
	m := newTestManager(newFakeClusterer(), nil, nil)

	out := m.RunTopic(context.Background(), matcher.New(topic, nil), sampleItems(), testNow)
	if out.Status != StatusSkipped || out.SkippedReason != SkipDisabled {
		t.Errorf("expected disabled skip, got %s/%s", out.Status, out.SkippedReason)
	}
}

func TestRunTopicCapsMatchesInInputOrder(t *testing.T) {
	topic := aiTopic()
	topic.MaxPostsPerRun = 1
	fc := newFakeClusterer()
	m := newTestManager(fc, nil, nil)

	out := m.RunTopic(context.Background(), matcher.New(topic, nil), sampleItems(), testNow)
	if out.ItemsMatched != 1 {
		t.Fatalf("expected 1 item matched, got %d", out.ItemsMatched)
	}
	if got := fc.handle.added; len(got) != 1 || got[0].ID != "1" {
		t.Errorf("expected only item 1 to reach clustering, got %+v", got)
	}
}

func TestRunTopicNoMatchesAdvancesCadence(t *testing.T) {
	ctx := context.Background()
	cad := cadence.NewManager(nil)
	fc := newFakeClusterer()
	m := newTestManager(fc, cad, nil)
	topic := aiTopic()

	items := []types.Item{{ID: "x", Title: "Weather report"}}
	out := m.RunTopic(ctx, matcher.New(topic, nil), items, testNow)

	if out.Status != StatusProcessed || out.ItemsMatched != 0 {
		t.Errorf("expected processed with 0 matches, got %s/%d", out.Status, out.ItemsMatched)
	}
	if fc.handle.calls != 0 {
		t.Error("clustering should not be called without matches")
	}
	if due, _ := cad.IsDue(ctx, topic, testNow.Add(time.Minute)); due {
		t.Error("successful empty run should advance cadence")
	}
}

func TestRunTopicFailureKeepsCadence(t *testing.T) {
	ctx := context.Background()
	cad := cadence.NewManager(nil)
	fc := newFakeClusterer()
	fc.handle.addErr = errors.New("clusterer down")
	m := newTestManager(fc, cad, nil)
	topic := aiTopic()

	out := m.RunTopic(ctx, matcher.New(topic, nil), sampleItems(), testNow)
	if out.Status != StatusFailed || out.Err == nil {
		t.Fatalf("expected failure, got %s", out.Status)
	}
	var te *types.TopicError
	if !errors.As(out.Err, &te) || te.Stage != "add_items" {
		t.Errorf("expected add_items TopicError, got %v", out.Err)
	}
	if due, _ := cad.IsDue(ctx, topic, testNow.Add(time.Minute)); !due {
		t.Error("failed run must not advance cadence")
	}
}

func TestRunTopicTimeout(t *testing.T) {
	fc := newFakeClusterer()
	fc.handle.block = true
	m := newTestManager(fc, nil, nil)

	start := time.Now()
	out := m.RunTopic(context.Background(), matcher.New(aiTopic(), nil), sampleItems(), testNow)
	if out.Status != StatusFailed {
		t.Fatalf("expected timeout failure, got %s", out.Status)
	}
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", out.Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not enforced")
	}
}

func TestRunTopicPanicBecomesFailure(t *testing.T) {
	fc := newFakeClusterer()
	fc.handle.panicOnGet = true
	m := newTestManager(fc, nil, nil)

	out := m.RunTopic(context.Background(), matcher.New(aiTopic(), nil), sampleItems(), testNow)
	if out.Status != StatusFailed {
		t.Errorf("expected failure after panic, got %s", out.Status)
	}
}

func TestRunTopicSkipsClosedClusters(t *testing.T) {
	fc := newFakeClusterer()
	fc.handle.closed[2] = true
	m := newTestManager(fc, nil, nil)

	out := m.RunTopic(context.Background(), matcher.New(aiTopic(), nil), sampleItems(), testNow)
	if out.Status != StatusProcessed {
		t.Fatalf("expected processed, got %s (%v)", out.Status, out.Err)
	}
	for _, c := range out.TopClusters {
		if c.ID == 2 {
			t.Error("closed cluster must not be ranked")
		}
	}
	if len(out.ClustersUpdated) != 1 {
		t.Errorf("expected 1 updated cluster, got %v", out.ClustersUpdated)
	}
}

func TestRunTopicDegradedQueries(t *testing.T) {
	topic := aiTopic()
	topic.Queries = []string{`"broken`}
	m := newTestManager(newFakeClusterer(), nil, nil)

	out := m.RunTopic(context.Background(), matcher.New(topic, nil), sampleItems(), testNow)
	if out.Status != StatusProcessed || out.ItemsMatched != 0 {
		t.Errorf("expected processed with no matches, got %s/%d", out.Status, out.ItemsMatched)
	}
	if len(out.Warnings) != 2 {
		t.Errorf("expected compile and degraded warnings, got %v", out.Warnings)
	}
}

// fakeClusterer puts every item in its own cluster with id = position + 1.
type fakeClusterer struct {
	handle *fakeHandle
}

func newFakeClusterer() *fakeClusterer {
	return &fakeClusterer{handle: &fakeHandle{
		clusters: make(map[int64]*types.Cluster),
		closed:   make(map[int64]bool),
	}}
}

func (f *fakeClusterer) Handle(topicKey string) clustering.Handle {
	return f.handle
}

type fakeHandle struct {
	clusters   map[int64]*types.Cluster
	closed     map[int64]bool
	added      []types.Item
	calls      int
	addErr     error
	block      bool
	panicOnGet bool
}

func (h *fakeHandle) AddItems(ctx context.Context, items []types.Item) ([]int64, error) {
	h.calls++
	if h.block {
		select {}
	}
	if h.addErr != nil {
		return nil, h.addErr
	}
	h.added = append(h.added, items...)

	ids := make([]int64, 0, len(items))
	for i, item := range items {
		id := int64(i + 1)
		status := types.ClusterOpen
		if h.closed[id] {
			status = types.ClusterClosed
		}
		h.clusters[id] = &types.Cluster{
			ID:         id,
			Status:     status,
			ItemsCount: 1,
			Domains:    map[string]int{item.Domain: 1},
			Timestamps: []time.Time{item.PublishedAt},
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *fakeHandle) GetCluster(ctx context.Context, id int64) (*types.Cluster, error) {
	if h.panicOnGet {
		panic("boom")
	}
	c, ok := h.clusters[id]
	if !ok {
		return nil, clustering.ErrClusterNotFound
	}
	return c, nil
}
