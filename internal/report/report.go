// Package report delivers run reports to downstream consumers.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"trender/internal/pipeline"
)

type Publisher interface {
	Name() string
	Publish(ctx context.Context, r *pipeline.RunReport) error
}

// LogPublisher writes the run summary and each topic's top cluster to the log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string {
	return "log"
}

func (p *LogPublisher) Publish(ctx context.Context, r *pipeline.RunReport) error {
	p.logger.Info("Run report",
		"run_id", r.RunID,
		"total_topics", r.Summary.TotalTopics,
		"topics_processed", r.Summary.TopicsProcessed,
		"topics_skipped", r.Summary.TopicsSkipped,
		"topics_failed", r.Summary.TopicsFailed,
		"total_items_matched", r.Summary.TotalItemsMatched,
		"total_clusters_updated", r.Summary.TotalClustersUpdated)

	for _, key := range r.Order {
		t := r.Topics[key]
		if len(t.TopClusters) == 0 {
			continue
		}
		top := t.TopClusters[0]
		p.logger.Info("Top cluster",
			"topic_key", key,
			"cluster_id", top.ID,
			"title", top.Title,
			"items_count", top.ItemsCount,
			"score_total", top.ScoreTotal)
	}
	return nil
}

// natsConn is the part of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// NATSPublisher sends the JSON encoded report to a subject.
type NATSPublisher struct {
	conn    natsConn
	subject string
	timeout time.Duration
}

func NewNATSPublisher(conn natsConn, subject string, timeout time.Duration) *NATSPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSPublisher{conn: conn, subject: subject, timeout: timeout}
}

// ConnectNATS opens a named connection to url.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

func (p *NATSPublisher) Name() string {
	return "nats"
}

func (p *NATSPublisher) Publish(ctx context.Context, r *pipeline.RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish run report: %w", err)
	}

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("failed to flush run report: %w", err)
	}
	return nil
}

// PublishAll sends r to every publisher and joins their errors.
func PublishAll(ctx context.Context, r *pipeline.RunReport, publishers []Publisher) error {
	var errs []error
	for _, p := range publishers {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
