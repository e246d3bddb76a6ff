// Package pipeline runs every configured topic over a batch of items and aggregates
// the outcomes into a run report.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trender/internal/matcher"
	"trender/internal/trender"
	"trender/internal/types"
)

type Orchestrator struct {
	manager  *trender.Manager
	matchers []*matcher.Matcher
	workers  int
	now      func() time.Time
	logger   *slog.Logger
}

type Options struct {
	Manager *trender.Manager
	Topics  []types.TopicConfig
	// Workers bounds concurrent topic runs; 1 runs topics one after another.
	Workers int
	Now     func() time.Time
	Logger  *slog.Logger
}

func New(opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	matchers := make([]*matcher.Matcher, 0, len(opts.Topics))
	for _, topic := range opts.Topics {
		matchers = append(matchers, matcher.New(topic, opts.Logger))
	}

	return &Orchestrator{
		manager:  opts.Manager,
		matchers: matchers,
		workers:  opts.Workers,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// Run processes every topic once. One topic's failure never affects another. If ctx is
// cancelled no further topics start and the report is marked partial.
func (o *Orchestrator) Run(ctx context.Context, items []types.Item) *RunReport {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Topics:    make(map[string]TopicReport, len(o.matchers)),
		Summary:   Summary{TotalTopics: len(o.matchers)},
	}
	now := report.StartedAt

	o.logger.Info("Run started", "run_id", report.RunID, "topics", len(o.matchers), "items", len(items), "workers", o.workers)

	outcomes := make([]*trender.TopicOutcome, len(o.matchers))

	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, tm := range o.matchers {
		if ctx.Err() != nil {
			report.Partial = true
			break
		}
		i, tm := i, tm
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out := o.manager.RunTopic(ctx, tm, items, now)
			outcomes[i] = &out
			return nil
		})
	}
	g.Wait()

	for i, out := range outcomes {
		if out == nil {
			report.Partial = report.Partial || ctx.Err() != nil
			continue
		}
		report.add(o.matchers[i].Topic().TopicKey, *out)
	}

	report.FinishedAt = o.now()

	o.logger.Info("Run finished",
		"run_id", report.RunID,
		"processed", report.Summary.TopicsProcessed,
		"skipped", report.Summary.TopicsSkipped,
		"failed", report.Summary.TopicsFailed,
		"items_matched", report.Summary.TotalItemsMatched,
		"clusters_updated", report.Summary.TotalClustersUpdated,
		"partial", report.Partial)

	return report
}

func (o *Orchestrator) Topics() []types.TopicConfig {
	topics := make([]types.TopicConfig, 0, len(o.matchers))
	for _, tm := range o.matchers {
		topics = append(topics, tm.Topic())
	}
	return topics
}
