package types

import (
	"net/url"
	"strings"
	"time"
)

// Item is a normalized content item handed to the engine by an ingestion adapter.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	URL         string    `json:"url,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func (i Item) GetID() string {
	return i.ID
}

func (i Item) GetSource() string {
	return i.Source
}

func (i Item) GetTimestamp() time.Time {
	return i.PublishedAt
}

// Text is the matchable body of the item: title and summary joined by a space.
func (i Item) Text() string {
	if i.Summary == "" {
		return i.Title
	}
	return i.Title + " " + i.Summary
}

// DomainName returns the normalized domain, falling back to the URL host.
func (i Item) DomainName() string {
	if i.Domain != "" {
		return NormalizeDomain(i.Domain)
	}
	if i.URL == "" {
		return ""
	}
	u, err := url.Parse(i.URL)
	if err != nil {
		return ""
	}
	return NormalizeDomain(u.Hostname())
}

// NormalizeDomain lower-cases d and drops a leading "www." and a trailing dot.
func NormalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimSuffix(d, ".")
	return strings.TrimPrefix(d, "www.")
}

type TopicConfig struct {
	Name           string   `json:"name"`
	TopicKey       string   `json:"topic_key"`
	Queries        []string `json:"queries"`
	AllowDomains   []string `json:"allow_domains,omitempty"`
	Lang           string   `json:"lang,omitempty"`
	CadenceMinutes int      `json:"cadence_minutes"`
	MaxPostsPerRun int      `json:"max_posts_per_run"`
	BoostFactor    float64  `json:"boost_factor"`
	MinScore       float64  `json:"min_score"`
	Enabled        bool     `json:"enabled"`
}

func (t TopicConfig) Cadence() time.Duration {
	return time.Duration(t.CadenceMinutes) * time.Minute
}

type MatchResult struct {
	Matched bool    `json:"matched"`
	Score   float64 `json:"score"`
}

type ClusterStatus string

const (
	ClusterOpen   ClusterStatus = "open"
	ClusterClosed ClusterStatus = "closed"
)

type Scores struct {
	Trend     float64 `json:"score_trend"`
	Diversity float64 `json:"score_diversity"`
	Freshness float64 `json:"score_freshness"`
	Total     float64 `json:"score_total"`
}

// Cluster is a group of related items maintained by the clustering capability.
// The score fields are written by the scoring engine.
type Cluster struct {
	ID         int64          `json:"id"`
	TopicKey   string         `json:"topic_key"`
	Title      string         `json:"title,omitempty"`
	Status     ClusterStatus  `json:"status"`
	ItemsCount int            `json:"items_count"`
	ItemIDs    []string       `json:"item_ids,omitempty"`
	Domains    map[string]int `json:"domains"`
	Timestamps []time.Time    `json:"timestamps,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`

	ScoreTrend     float64 `json:"score_trend"`
	ScoreDiversity float64 `json:"score_diversity"`
	ScoreFreshness float64 `json:"score_freshness"`
	ScoreTotal     float64 `json:"score_total"`
}

func (c *Cluster) IsOpen() bool {
	return c.Status == ClusterOpen
}

func (c *Cluster) Scores() Scores {
	return Scores{
		Trend:     c.ScoreTrend,
		Diversity: c.ScoreDiversity,
		Freshness: c.ScoreFreshness,
		Total:     c.ScoreTotal,
	}
}

// Clone returns a deep copy so callers can hand clusters across goroutines.
func (c *Cluster) Clone() *Cluster {
	if c == nil {
		return nil
	}
	out := *c
	out.ItemIDs = append([]string(nil), c.ItemIDs...)
	out.Timestamps = append([]time.Time(nil), c.Timestamps...)
	out.Domains = make(map[string]int, len(c.Domains))
	for k, v := range c.Domains {
		out.Domains[k] = v
	}
	return &out
}
