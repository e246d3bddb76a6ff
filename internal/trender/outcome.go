package trender

import (
	"time"

	"trender/internal/types"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

const (
	SkipDisabled      = "disabled"
	SkipCadenceNotMet = "cadence_not_met"
)

// TopicOutcome is the result of one topic run. Exactly one of the processed, skipped
// or failed shapes applies, as given by Status.
type TopicOutcome struct {
	TopicKey        string
	Name            string
	Status          Status
	SkippedReason   string
	ItemsMatched    int
	ClustersUpdated []int64
	TopClusters     []*types.Cluster
	Err             error
	Warnings        []string
	Duration        time.Duration
}

func (o TopicOutcome) Processed() bool {
	return o.Status == StatusProcessed
}

func skipped(topic types.TopicConfig, reason string) TopicOutcome {
	return TopicOutcome{
		TopicKey:      topic.TopicKey,
		Name:          topic.Name,
		Status:        StatusSkipped,
		SkippedReason: reason,
	}
}

func failed(topic types.TopicConfig, stage string, err error) TopicOutcome {
	return TopicOutcome{
		TopicKey: topic.TopicKey,
		Name:     topic.Name,
		Status:   StatusFailed,
		Err:      types.NewTopicError(topic.TopicKey, stage, err),
	}
}
