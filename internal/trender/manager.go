// Package trender runs a single topic through matching, clustering, scoring and ranking.
package trender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trender/internal/cadence"
	"trender/internal/clustering"
	"trender/internal/history"
	"trender/internal/matcher"
	"trender/internal/scoring"
	"trender/internal/storage"
	"trender/internal/types"
	"trender/internal/utils"
)

type Config struct {
	MaxClustersPerTopic int
	TauHours            float64
	// ClusterTimeout bounds every call into the clustering capability.
	ClusterTimeout time.Duration
}

type Manager struct {
	cfg       Config
	clusterer clustering.Clusterer
	history   history.Store
	cadence   *cadence.Manager
	scores    storage.ScoreStore
	logger    *slog.Logger
}

type ManagerOptions struct {
	Config    Config
	Clusterer clustering.Clusterer
	History   history.Store
	Cadence   *cadence.Manager
	// Scores is optional; when set every scored cluster is persisted for display.
	Scores storage.ScoreStore
	Logger *slog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	cfg := opts.Config
	if cfg.MaxClustersPerTopic <= 0 {
		cfg.MaxClustersPerTopic = 10
	}
	if cfg.TauHours <= 0 {
		cfg.TauHours = scoring.DefaultTauHours
	}
	if cfg.ClusterTimeout <= 0 {
		cfg.ClusterTimeout = 30 * time.Second
	}
	if opts.History == nil {
		opts.History = history.NewMemoryStore(opts.Logger)
	}
	if opts.Cadence == nil {
		opts.Cadence = cadence.NewManager(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		cfg:       cfg,
		clusterer: opts.Clusterer,
		history:   opts.History,
		cadence:   opts.Cadence,
		scores:    opts.Scores,
		logger:    opts.Logger,
	}
}

// RunTopic processes one topic against the batch. Failures are reported in the outcome
// and leave the topic's cadence untouched.
func (m *Manager) RunTopic(ctx context.Context, tm *matcher.Matcher, items []types.Item, now time.Time) (out TopicOutcome) {
	topic := tm.Topic()
	started := time.Now()
	log := m.logger.With("topic_key", topic.TopicKey)

	defer func() {
		if r := recover(); r != nil {
			out = failed(topic, "run", fmt.Errorf("panic: %v", r))
		}
		out.Duration = time.Since(started)
		m.logOutcome(log, out)
	}()

	if !topic.Enabled {
		return skipped(topic, SkipDisabled)
	}

	due, err := m.cadence.IsDue(ctx, topic, now)
	if err != nil {
		return failed(topic, "cadence", err)
	}
	if !due {
		return skipped(topic, SkipCadenceNotMet)
	}

	warnings := compileWarnings(tm)

	matched := tm.Filter(items, topic.MaxPostsPerRun)
	if len(matched) == 0 {
		if err := m.cadence.MarkRun(ctx, topic, now); err != nil {
			return failed(topic, "cadence", err)
		}
		return TopicOutcome{
			TopicKey: topic.TopicKey,
			Name:     topic.Name,
			Status:   StatusProcessed,
			Warnings: warnings,
		}
	}

	if m.clusterer == nil {
		return failed(topic, "clustering", fmt.Errorf("no clusterer configured"))
	}
	handle := m.clusterer.Handle(topic.TopicKey)

	touched, err := callWithTimeout(ctx, m.cfg.ClusterTimeout, func(ctx context.Context) ([]int64, error) {
		return handle.AddItems(ctx, matched)
	})
	if err != nil {
		return failed(topic, "add_items", err)
	}
	touched = utils.Unique(touched)

	scored, err := m.scoreClusters(ctx, topic, handle, touched, now)
	if err != nil {
		return failed(topic, "scoring", err)
	}

	top := scoring.Rank(scored, m.cfg.MaxClustersPerTopic)

	if err := m.cadence.MarkRun(ctx, topic, now); err != nil {
		return failed(topic, "cadence", err)
	}

	updated := make([]int64, 0, len(scored))
	for _, c := range scored {
		updated = append(updated, c.ID)
	}

	return TopicOutcome{
		TopicKey:        topic.TopicKey,
		Name:            topic.Name,
		Status:          StatusProcessed,
		ItemsMatched:    len(matched),
		ClustersUpdated: updated,
		TopClusters:     top,
		Warnings:        warnings,
	}
}

func (m *Manager) scoreClusters(ctx context.Context, topic types.TopicConfig, handle clustering.Handle, ids []int64, now time.Time) ([]*types.Cluster, error) {
	scored := make([]*types.Cluster, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cluster, err := callWithTimeout(ctx, m.cfg.ClusterTimeout, func(ctx context.Context) (*types.Cluster, error) {
			return handle.GetCluster(ctx, id)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster %d: %w", id, err)
		}
		if cluster == nil || !cluster.IsOpen() {
			continue
		}

		window := m.history.Window(ctx, cluster.ID)
		scoring.Score(cluster, window, now, m.cfg.TauHours)
		m.history.Record(ctx, cluster.ID, cluster.ItemsCount, now)

		if m.scores != nil {
			if err := m.scores.SaveScores(ctx, topic.TopicKey, cluster, now); err != nil {
				return nil, err
			}
		}
		scored = append(scored, cluster)
	}
	return scored, nil
}

func compileWarnings(tm *matcher.Matcher) []string {
	errs := tm.Errors()
	if len(errs) == 0 {
		return nil
	}
	warnings := make([]string, 0, len(errs)+1)
	for _, err := range errs {
		warnings = append(warnings, err.Error())
	}
	if tm.Degraded() {
		warnings = append(warnings, "no query compiled; topic cannot match")
	}
	return warnings
}

func (m *Manager) logOutcome(log *slog.Logger, out TopicOutcome) {
	switch out.Status {
	case StatusProcessed:
		log.Info("Topic processed",
			"items_matched", out.ItemsMatched,
			"clusters_updated", len(out.ClustersUpdated),
			"top_clusters", len(out.TopClusters),
			"duration", out.Duration)
	case StatusSkipped:
		log.Debug("Topic skipped", "reason", out.SkippedReason)
	case StatusFailed:
		log.Error("Topic failed", "error", out.Err, "duration", out.Duration)
	}
}

// callWithTimeout runs fn under a deadline and gives up waiting once it passes, even
// if fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
