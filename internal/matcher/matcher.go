// Package matcher decides whether an item belongs to a topic.
package matcher

import (
	"log/slog"
	"strings"

	"trender/internal/query"
	"trender/internal/types"
)

// BaseScore is the score of a matched item before the topic boost applies.
const BaseScore = 1.0

// Matcher evaluates items against one topic. Queries are compiled once in New;
// queries that fail to compile are logged and never match.
type Matcher struct {
	topic   types.TopicConfig
	queries []*query.Query
	errs    []error
	domains map[string]struct{}
	logger  *slog.Logger
}

func New(topic types.TopicConfig, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Matcher{
		topic:  topic,
		logger: logger,
	}

	for _, raw := range topic.Queries {
		compiled, err := query.Compile(raw)
		if err != nil {
			logger.Warn("Query failed to compile, treating as non-matching",
				"topic_key", topic.TopicKey,
				"query", raw,
				"error", err)
			m.errs = append(m.errs, err)
			continue
		}
		m.queries = append(m.queries, compiled)
	}

	if len(topic.AllowDomains) > 0 {
		m.domains = make(map[string]struct{}, len(topic.AllowDomains))
		for _, d := range topic.AllowDomains {
			if d = types.NormalizeDomain(d); d != "" {
				m.domains[d] = struct{}{}
			}
		}
	}

	return m
}

// Evaluate is the one-shot form of New(topic).Evaluate(item).
func Evaluate(item types.Item, topic types.TopicConfig) types.MatchResult {
	return New(topic, nil).Evaluate(item)
}

func (m *Matcher) Topic() types.TopicConfig {
	return m.topic
}

// Errors returns the compile errors of the topic's queries.
func (m *Matcher) Errors() []error {
	return m.errs
}

// Degraded reports whether the topic can never match because none of its queries compiled.
func (m *Matcher) Degraded() bool {
	return len(m.queries) == 0
}

func (m *Matcher) Evaluate(item types.Item) types.MatchResult {
	if !m.domainAllowed(item) {
		return types.MatchResult{}
	}
	if !m.langAllowed(item) {
		return types.MatchResult{}
	}
	if !m.queryMatches(item) {
		return types.MatchResult{}
	}

	score := BaseScore * m.topic.BoostFactor
	if score < m.topic.MinScore {
		return types.MatchResult{Score: score}
	}
	return types.MatchResult{Matched: true, Score: score}
}

// Filter returns the matched items in input order, at most limit of them when limit > 0.
func (m *Matcher) Filter(items []types.Item, limit int) []types.Item {
	var out []types.Item
	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		if m.Evaluate(item).Matched {
			out = append(out, item)
		}
	}
	return out
}

func (m *Matcher) domainAllowed(item types.Item) bool {
	if len(m.domains) == 0 {
		return true
	}
	domain := item.DomainName()
	if domain == "" {
		return true
	}
	_, ok := m.domains[domain]
	return ok
}

func (m *Matcher) langAllowed(item types.Item) bool {
	if m.topic.Lang == "" || item.Lang == "" {
		return true
	}
	return strings.EqualFold(m.topic.Lang, item.Lang)
}

func (m *Matcher) queryMatches(item types.Item) bool {
	if len(m.queries) == 0 {
		return false
	}
	doc := query.NewDocumentFromText(item.Text())
	for _, q := range m.queries {
		if q.MatchDocument(doc) {
			return true
		}
	}
	return false
}
