package pipeline

import (
	"time"

	"trender/internal/trender"
	"trender/internal/types"
)

// Summary aggregates topic outcomes. TotalTopics counts every configured topic, so on a
// partial report it exceeds the sum of the per-status counts.
type Summary struct {
	TotalTopics          int `json:"total_topics"`
	TopicsProcessed      int `json:"topics_processed"`
	TopicsSkipped        int `json:"topics_skipped"`
	TopicsFailed         int `json:"topics_failed"`
	TotalItemsMatched    int `json:"total_items_matched"`
	TotalClustersUpdated int `json:"total_clusters_updated"`
}

type TopicReport struct {
	Name            string           `json:"name"`
	Status          trender.Status   `json:"status"`
	Processed       bool             `json:"processed"`
	SkippedReason   string           `json:"skipped_reason,omitempty"`
	ItemsMatched    int              `json:"items_matched"`
	ClustersUpdated int              `json:"clusters_updated"`
	TopClusters     []*types.Cluster `json:"top_clusters"`
	Error           string           `json:"error,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
	DurationMS      int64            `json:"duration_ms"`
}

type RunReport struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Partial    bool                   `json:"partial"`
	Summary    Summary                `json:"summary"`
	Topics     map[string]TopicReport `json:"topics"`
	// Order lists topic keys in the order they were scheduled.
	Order []string `json:"order"`
}

func newTopicReport(out trender.TopicOutcome) TopicReport {
	r := TopicReport{
		Name:            out.Name,
		Status:          out.Status,
		Processed:       out.Processed(),
		SkippedReason:   out.SkippedReason,
		ItemsMatched:    out.ItemsMatched,
		ClustersUpdated: len(out.ClustersUpdated),
		TopClusters:     out.TopClusters,
		Warnings:        out.Warnings,
		DurationMS:      out.Duration.Milliseconds(),
	}
	if r.TopClusters == nil {
		r.TopClusters = []*types.Cluster{}
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	return r
}

func (r *RunReport) add(key string, out trender.TopicOutcome) {
	r.Topics[key] = newTopicReport(out)
	r.Order = append(r.Order, key)

	switch out.Status {
	case trender.StatusProcessed:
		r.Summary.TopicsProcessed++
	case trender.StatusSkipped:
		r.Summary.TopicsSkipped++
	case trender.StatusFailed:
		r.Summary.TopicsFailed++
	}
	r.Summary.TotalItemsMatched += out.ItemsMatched
	r.Summary.TotalClustersUpdated += len(out.ClustersUpdated)
}
