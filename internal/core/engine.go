package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trender/internal/pipeline"
	"trender/internal/report"
	"trender/internal/sources"
	"trender/internal/storage"
)

// Engine performs one full cycle: fetch every source, run all topics, publish the report.
type Engine struct {
	sources      []sources.Source
	orchestrator *pipeline.Orchestrator
	publishers   []report.Publisher
	scores       storage.ScoreStore
	retention    time.Duration
	logger       *slog.Logger

	mu   sync.RWMutex
	last *pipeline.RunReport
}

type EngineConfig struct {
	Sources      []sources.Source
	Orchestrator *pipeline.Orchestrator
	Publishers   []report.Publisher
	// Scores and Retention enable pruning of old persisted scores after each run.
	Scores    storage.ScoreStore
	Retention time.Duration
	Logger    *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		sources:      cfg.Sources,
		orchestrator: cfg.Orchestrator,
		publishers:   cfg.Publishers,
		scores:       cfg.Scores,
		retention:    cfg.Retention,
		logger:       cfg.Logger,
	}
}

func (e *Engine) Run(ctx context.Context) error {
	items := sources.Collect(ctx, e.sources, e.logger)
	e.logger.Debug("Collected items", "count", len(items), "sources", len(e.sources))

	rep := e.orchestrator.Run(ctx, items)

	e.mu.Lock()
	e.last = rep
	e.mu.Unlock()

	if err := report.PublishAll(ctx, rep, e.publishers); err != nil {
		e.logger.Warn("Failed to publish run report", "run_id", rep.RunID, "error", err)
	}

	if e.scores != nil && e.retention > 0 {
		if err := e.scores.DeleteOlderThan(ctx, e.retention); err != nil {
			e.logger.Warn("Failed to prune cluster scores", "error", err)
		}
	}

	if rep.Partial {
		return fmt.Errorf("run %s interrupted: %w", rep.RunID, context.Cause(ctx))
	}
	return nil
}

// LastReport returns the most recent run report, or nil before the first run.
func (e *Engine) LastReport() *pipeline.RunReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}
