package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"trender/internal/cadence"
	"trender/internal/clustering"
	"trender/internal/pipeline"
	"trender/internal/report"
	"trender/internal/sources"
	"trender/internal/trender"
	"trender/internal/types"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestBotRunOnce(t *testing.T) {
	runner := &countingRunner{}
	bot := NewBot(BotConfig{Name: "test", Runner: runner, RunOnce: true})

	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runner.calls.Load())
	}
	if bot.IsRunning() {
		t.Error("bot should stop after a single run")
	}
}

func TestBotRunOnceReturnsError(t *testing.T) {
	runner := &countingRunner{err: errors.New("boom")}
	bot := NewBot(BotConfig{Name: "test", Runner: runner, RunOnce: true})

	if err := bot.Start(context.Background()); err == nil {
		t.Error("expected run error")
	}
}

func TestBotContinuousUntilStopped(t *testing.T) {
	runner := &countingRunner{err: errors.New("transient")}
	bot := NewBot(BotConfig{Name: "test", Runner: runner, Interval: 10 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- bot.Start(context.Background()) }()

	time.Sleep(55 * time.Millisecond)
	if err := bot.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}

	if runner.calls.Load() < 2 {
		t.Errorf("expected several runs, got %d", runner.calls.Load())
	}
	stats := bot.Stats()
	if stats.Runs != int(runner.calls.Load()) || stats.Failures != stats.Runs || stats.LastError == nil {
		t.Errorf("unexpected stats: %+v", stats)
	}
	select {
	case err := <-bot.Errors():
		if err == nil {
			t.Error("expected reported error")
		}
	default:
		t.Error("run errors should be reported on the error channel")
	}
}

func TestBotStopRunsShutdownOnce(t *testing.T) {
	var shutdowns atomic.Int32
	bot := NewBot(BotConfig{
		Name:       "test",
		Runner:     &countingRunner{},
		ShutdownFn: func() error { shutdowns.Add(1); return nil },
	})

	ctx := context.Background()
	if err := bot.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	bot.Stop(ctx)

	if shutdowns.Load() != 1 {
		t.Errorf("expected 1 shutdown, got %d", shutdowns.Load())
	}
}

func TestBotRunOnceIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &countingRunner{err: context.Canceled}
	bot := NewBot(BotConfig{Name: "test", Runner: runner, RunOnce: true})
	if err := bot.Start(ctx); err != nil {
		t.Errorf("expected cancellation to end the run quietly, got %v", err)
	}
}

type staticSource struct {
	items []types.Item
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(ctx context.Context) (<-chan types.Item, <-chan error) {
	itemChan := make(chan types.Item, len(s.items))
	errChan := make(chan error, 1)
	for _, item := range s.items {
		itemChan <- item
	}
	close(itemChan)
	close(errChan)
	return itemChan, errChan
}

type capturePublisher struct {
	reports []*pipeline.RunReport
}

func (p *capturePublisher) Name() string { return "capture" }

func (p *capturePublisher) Publish(ctx context.Context, r *pipeline.RunReport) error {
	p.reports = append(p.reports, r)
	return nil
}

func TestEngineRun(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr := trender.NewManager(trender.ManagerOptions{
		Clusterer: clustering.NewHeuristic(clustering.HeuristicConfig{Now: func() time.Time { return now }}),
		Cadence:   cadence.NewManager(nil),
	})
	topic := types.TopicConfig{
		Name: "AI", TopicKey: "ai", Queries: []string{`"machine learning"`},
		CadenceMinutes: 30, MaxPostsPerRun: 10, BoostFactor: 1, Enabled: true,
	}
	orch := pipeline.New(pipeline.Options{Manager: mgr, Topics: []types.TopicConfig{topic}, Now: func() time.Time { return now }})

	pub := &capturePublisher{}
	src := staticSource{items: []types.Item{
		{ID: "1", Title: "Machine learning everywhere", Domain: "a.com", PublishedAt: now},
		{ID: "2", Title: "Gardening tips", Domain: "b.com", PublishedAt: now},
	}}

	engine := NewEngine(EngineConfig{
		Sources:      []sources.Source{src},
		Orchestrator: orch,
		Publishers:   []report.Publisher{pub},
	})

	if engine.LastReport() != nil {
		t.Error("expected no report before the first run")
	}
	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(pub.reports) != 1 {
		t.Fatalf("expected 1 published report, got %d", len(pub.reports))
	}
	last := engine.LastReport()
	if last == nil || last.Summary.TotalItemsMatched != 1 {
		t.Errorf("unexpected report: %+v", last)
	}
}
