// Package scoring computes trend, diversity and freshness scores for clusters and ranks them.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/viterin/vek"

	"trender/internal/types"
)

const (
	WeightTrend     = 0.45
	WeightDiversity = 0.35
	WeightFreshness = 0.20

	// DefaultTauHours is the freshness decay constant.
	DefaultTauHours = 3.0

	// TrendWindow is how many of the most recent history points the trend compares against.
	TrendWindow = 7

	varianceEpsilon = 1e-12
)

// TrendSpike measures how unusual itemsCount is relative to the cluster's history.
// Without at least two points of varying history it falls back to 1 for clusters of
// two or more items and 0 otherwise.
func TrendSpike(itemsCount int, history []int) float64 {
	if len(history) > TrendWindow {
		history = history[len(history)-TrendWindow:]
	}
	if len(history) < 2 {
		return fallbackTrend(itemsCount)
	}

	points := make([]float64, len(history))
	for i, h := range history {
		points[i] = float64(h)
	}

	mean := vek.Mean(points)
	deviations := vek.SubNumber(points, mean)
	variance := vek.Dot(deviations, deviations) / float64(len(points))
	if variance < varianceEpsilon {
		return fallbackTrend(itemsCount)
	}

	z := (float64(itemsCount) - mean) / math.Sqrt(variance)
	return sigmoid(z)
}

func fallbackTrend(itemsCount int) float64 {
	if itemsCount >= 2 {
		return 1.0
	}
	return 0.0
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// Gini returns the Gini coefficient of values. Empty input or a zero sum gives 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := vek.Sum(sorted)
	if sum == 0 {
		return 0
	}

	var acc float64
	for i, x := range sorted {
		acc += float64(2*(i+1)-n-1) * x
	}
	return acc / (float64(n) * sum)
}

// DomainDiversity is one minus the Gini coefficient of the domain shares.
// A cluster with a single domain is fully diverse by definition; one with no items scores 0.
func DomainDiversity(domains map[string]int) float64 {
	total := 0
	nonEmpty := 0
	for _, c := range domains {
		if c > 0 {
			total += c
			nonEmpty++
		}
	}
	if total == 0 {
		return 0
	}
	if nonEmpty == 1 {
		return 1.0
	}

	shares := make([]float64, 0, nonEmpty)
	for _, c := range domains {
		if c > 0 {
			shares = append(shares, float64(c)/float64(total))
		}
	}
	return 1.0 - Gini(shares)
}

// Freshness decays exponentially with the mean member age in hours. Future timestamps
// count as age zero.
func Freshness(timestamps []time.Time, now time.Time, tauHours float64) float64 {
	if len(timestamps) == 0 {
		return 0
	}
	if tauHours <= 0 {
		tauHours = DefaultTauHours
	}

	var total float64
	for _, ts := range timestamps {
		age := now.Sub(ts).Hours()
		if age < 0 {
			age = 0
		}
		total += age
	}
	mean := total / float64(len(timestamps))
	return math.Exp(-mean / tauHours)
}

func Total(trend, diversity, freshness float64) float64 {
	return WeightTrend*trend + WeightDiversity*diversity + WeightFreshness*freshness
}

// Score computes every score for the cluster and writes them onto it.
func Score(cluster *types.Cluster, history []int, now time.Time, tauHours float64) types.Scores {
	trend := TrendSpike(cluster.ItemsCount, history)
	diversity := DomainDiversity(cluster.Domains)
	freshness := Freshness(cluster.Timestamps, now, tauHours)

	scores := types.Scores{
		Trend:     trend,
		Diversity: diversity,
		Freshness: freshness,
		Total:     Total(trend, diversity, freshness),
	}
	Persist(cluster, scores)
	return scores
}

func Persist(cluster *types.Cluster, scores types.Scores) {
	cluster.ScoreTrend = scores.Trend
	cluster.ScoreDiversity = scores.Diversity
	cluster.ScoreFreshness = scores.Freshness
	cluster.ScoreTotal = scores.Total
}
