package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"trender/internal/cadence"
	"trender/internal/clustering"
	"trender/internal/trender"
	"trender/internal/types"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func topic(key string, queries ...string) types.TopicConfig {
	return types.TopicConfig{
		Name:           key,
		TopicKey:       key,
		Queries:        queries,
		CadenceMinutes: 30,
		MaxPostsPerRun: 20,
		BoostFactor:    1.0,
		Enabled:        true,
	}
}

func items() []types.Item {
	return []types.Item{
		{ID: "1", Title: "New machine learning model released", Domain: "a.com", PublishedAt: testNow},
		{ID: "2", Title: "Neural", Summary: "deep networks", Domain: "b.com", PublishedAt: testNow},
		{ID: "3", Title: "Stock market rallies", Domain: "c.com", PublishedAt: testNow},
	}
}

func newOrchestrator(c clustering.Clusterer, workers int, topics ...types.TopicConfig) *Orchestrator {
	mgr := trender.NewManager(trender.ManagerOptions{
		Config:    trender.Config{MaxClustersPerTopic: 10, ClusterTimeout: time.Second},
		Clusterer: c,
		Cadence:   cadence.NewManager(nil),
	})
	return New(Options{
		Manager: mgr,
		Topics:  topics,
		Workers: workers,
		Now:     func() time.Time { return testNow },
	})
}

func TestRunAggregatesSummary(t *testing.T) {
	h := clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return testNow }})
	disabled := topic("off", "anything")
	disabled.Enabled = false

	o := newOrchestrator(h, 1,
		topic("ai_tech", `"machine learning"`, "neural NEAR/3 networks"),
		topic("markets", "stock"),
		disabled,
	)

	report := o.Run(context.Background(), items())

	s := report.Summary
	if s.TotalTopics != 3 || s.TopicsProcessed != 2 || s.TopicsSkipped != 1 || s.TopicsFailed != 0 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.TotalItemsMatched != 3 {
		t.Errorf("expected 3 matched items, got %d", s.TotalItemsMatched)
	}
	if s.TotalClustersUpdated != 3 {
		t.Errorf("expected 3 updated clusters, got %d", s.TotalClustersUpdated)
	}
	if report.Topics["off"].SkippedReason != trender.SkipDisabled {
		t.Errorf("expected disabled skip, got %+v", report.Topics["off"])
	}
	if report.Topics["ai_tech"].ItemsMatched != 2 {
		t.Errorf("expected ai_tech to match 2 items, got %d", report.Topics["ai_tech"].ItemsMatched)
	}
	if report.RunID == "" || report.Partial {
		t.Errorf("unexpected report header: id=%q partial=%v", report.RunID, report.Partial)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	c := &selectiveClusterer{
		inner:   clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return testNow }}),
		failFor: "broken",
	}

	o := newOrchestrator(c, 2,
		topic("ai_tech", `"machine learning"`),
		topic("broken", "stock"),
		topic("bad_query", `"unterminated`),
	)

	report := o.Run(context.Background(), items())

	if got := report.Topics["broken"]; got.Status != trender.StatusFailed || got.Error == "" {
		t.Errorf("expected broken topic to fail, got %+v", got)
	}
	if got := report.Topics["ai_tech"]; got.Status != trender.StatusProcessed || got.ItemsMatched != 1 {
		t.Errorf("healthy topic affected by failure: %+v", got)
	}
	bad := report.Topics["bad_query"]
	if bad.Status != trender.StatusProcessed || bad.ItemsMatched != 0 || len(bad.Warnings) == 0 {
		t.Errorf("expected degraded bad_query topic, got %+v", bad)
	}
	if report.Summary.TopicsFailed != 1 || report.Summary.TopicsProcessed != 2 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
}

func TestRunKeepsScheduleOrder(t *testing.T) {
	h := clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return testNow }})
	keys := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	topics := make([]types.TopicConfig, 0, len(keys))
	for _, k := range keys {
		topics = append(topics, topic(k, "machine"))
	}

	report := newOrchestrator(h, 4, topics...).Run(context.Background(), items())

	if len(report.Order) != len(keys) {
		t.Fatalf("expected %d topics, got %d", len(keys), len(report.Order))
	}
	for i, k := range keys {
		if report.Order[i] != k {
			t.Errorf("position %d: expected %s, got %s", i, k, report.Order[i])
		}
	}
}

func TestRunCancelledIsPartial(t *testing.T) {
	h := clustering.NewHeuristic(clustering.HeuristicConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newOrchestrator(h, 1, topic("a", "x"), topic("b", "y")).Run(ctx, items())

	if !report.Partial {
		t.Error("expected partial report after cancellation")
	}
	if len(report.Order) != 0 {
		t.Errorf("no topic should start after cancellation, got %v", report.Order)
	}
	s := report.Summary
	if s.TotalTopics != 2 {
		t.Errorf("expected both configured topics counted, got %d", s.TotalTopics)
	}
	if started := s.TopicsProcessed + s.TopicsSkipped + s.TopicsFailed; started != 0 {
		t.Errorf("expected no topic outcomes, got %d", started)
	}
}

func TestReportJSONShape(t *testing.T) {
	h := clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return testNow }})
	report := newOrchestrator(h, 1, topic("ai_tech", "machine")).Run(context.Background(), items())

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	summary, ok := decoded["summary"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing summary in %s", data)
	}
	for _, key := range []string{"total_topics", "topics_processed", "topics_skipped", "topics_failed", "total_items_matched", "total_clusters_updated"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("summary missing %s", key)
		}
	}
	topics := decoded["topics"].(map[string]interface{})
	entry := topics["ai_tech"].(map[string]interface{})
	for _, key := range []string{"processed", "items_matched", "top_clusters"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("topic entry missing %s", key)
		}
	}
}

type selectiveClusterer struct {
	inner   clustering.Clusterer
	failFor string
	mu      sync.Mutex
}

func (c *selectiveClusterer) Handle(topicKey string) clustering.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if topicKey == c.failFor {
		return failingHandle{}
	}
	return c.inner.Handle(topicKey)
}

type failingHandle struct{}

func (failingHandle) AddItems(context.Context, []types.Item) ([]int64, error) {
	return nil, errors.New("clusterer unavailable")
}

func (failingHandle) GetCluster(context.Context, int64) (*types.Cluster, error) {
	return nil, errors.New("clusterer unavailable")
}
