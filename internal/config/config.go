package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/BurntSushi/toml"

	"trender/internal/types"
)

type Config struct {
	Engine     EngineConfig            `toml:"engine"`
	Log        LogConfig               `toml:"log"`
	Storage    StorageConfig           `toml:"storage"`
	History    HistoryConfig           `toml:"history"`
	Clustering ClusteringConfig        `toml:"clustering"`
	NATS       NATSConfig              `toml:"nats"`
	Sources    map[string]SourceConfig `toml:"sources"`
	Topics     []TopicConfig           `toml:"topics"`
}

type EngineConfig struct {
	Name                string  `toml:"name"`
	Interval            string  `toml:"interval"`
	RunOnce             bool    `toml:"run_once"`
	RunTimeout          string  `toml:"run_timeout"`
	Workers             int     `toml:"workers"`
	MaxClustersPerTopic int     `toml:"max_clusters_per_topic"`
	TauHours            float64 `toml:"tau_hours"`
	ClusterTimeout      string  `toml:"cluster_timeout"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type StorageConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
	// Retention prunes persisted cluster scores older than this.
	Retention string `toml:"retention"`
}

type HistoryConfig struct {
	Backend     string `toml:"backend"`
	RedisURL    string `toml:"redis_url"`
	OpTimeout   string `toml:"op_timeout"`
	DialTimeout string `toml:"dial_timeout"`
}

type ClusteringConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	Window              string  `toml:"window"`
	CloseAfter          string  `toml:"close_after"`
	MaxClusterSize      int     `toml:"max_cluster_size"`
}

type NATSConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
	Timeout string `toml:"timeout"`
}

type SourceConfig struct {
	Type     string `toml:"type"`
	Enabled  bool   `toml:"enabled"`
	FeedURL  string `toml:"feed_url"`
	Lang     string `toml:"lang"`
	MaxItems int    `toml:"max_items"`
}

// TopicConfig is the on-disk form of a topic. Pointer fields distinguish "unset" from
// zero so defaults can be applied.
type TopicConfig struct {
	Name           string   `toml:"name"`
	TopicKey       string   `toml:"topic_key"`
	Queries        []string `toml:"queries"`
	AllowDomains   []string `toml:"allow_domains"`
	Lang           string   `toml:"lang"`
	CadenceMinutes *int     `toml:"cadence_minutes"`
	MaxPostsPerRun *int     `toml:"max_posts_per_run"`
	BoostFactor    *float64 `toml:"boost_factor"`
	MinScore       *float64 `toml:"min_score"`
	Enabled        *bool    `toml:"enabled"`
}

const (
	DefaultCadenceMinutes = 60
	DefaultMaxPostsPerRun = 50
	DefaultBoostFactor    = 1.0
	DefaultMinScore       = 0.0
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("invalid config: unknown keys: %s", strings.Join(keys, ", "))
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Engine.Name == "" {
		config.Engine.Name = "trender"
	}
	if config.Engine.Interval == "" {
		config.Engine.Interval = "5m"
	}
	if config.Engine.RunTimeout == "" {
		config.Engine.RunTimeout = "4m"
	}
	if config.Engine.ClusterTimeout == "" {
		config.Engine.ClusterTimeout = "30s"
	}
	if config.Engine.Workers <= 0 {
		config.Engine.Workers = 1
	}
	if config.Engine.MaxClustersPerTopic <= 0 {
		config.Engine.MaxClustersPerTopic = 10
	}
	if config.Engine.TauHours <= 0 {
		config.Engine.TauHours = 3.0
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "./trender.db"
	}
	if config.Storage.Retention == "" {
		config.Storage.Retention = "720h"
	}
	switch config.Storage.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}

	if config.History.Backend == "" {
		config.History.Backend = "redis"
	}
	if config.History.RedisURL == "" {
		config.History.RedisURL = "redis://localhost:6379/0"
	}
	if config.History.OpTimeout == "" {
		config.History.OpTimeout = "500ms"
	}
	if config.History.DialTimeout == "" {
		config.History.DialTimeout = "2s"
	}
	switch config.History.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported history backend: %s", config.History.Backend)
	}

	if config.Clustering.SimilarityThreshold == 0 {
		config.Clustering.SimilarityThreshold = 0.3
	}
	if config.Clustering.SimilarityThreshold < 0 || config.Clustering.SimilarityThreshold > 1 {
		return fmt.Errorf("clustering similarity_threshold must be in [0, 1]")
	}
	if config.Clustering.Window == "" {
		config.Clustering.Window = "24h"
	}
	if config.Clustering.CloseAfter == "" {
		config.Clustering.CloseAfter = "72h"
	}
	if config.Clustering.MaxClusterSize <= 0 {
		config.Clustering.MaxClusterSize = 200
	}

	if config.NATS.Enabled {
		if config.NATS.URL == "" {
			config.NATS.URL = "nats://127.0.0.1:4222"
		}
		if config.NATS.Subject == "" {
			config.NATS.Subject = "trender.reports"
		}
	}
	if config.NATS.Timeout == "" {
		config.NATS.Timeout = "5s"
	}

	durations := map[string]string{
		"engine.interval":        config.Engine.Interval,
		"engine.run_timeout":     config.Engine.RunTimeout,
		"engine.cluster_timeout": config.Engine.ClusterTimeout,
		"storage.retention":      config.Storage.Retention,
		"history.op_timeout":     config.History.OpTimeout,
		"history.dial_timeout":   config.History.DialTimeout,
		"clustering.window":      config.Clustering.Window,
		"clustering.close_after": config.Clustering.CloseAfter,
		"nats.timeout":           config.NATS.Timeout,
	}
	for _, key := range sortedKeys(durations) {
		d, err := time.ParseDuration(durations[key])
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", key)
		}
	}

	enabledSources := 0
	for name, src := range config.Sources {
		if !src.Enabled {
			continue
		}
		enabledSources++
		if src.Type == "" {
			src.Type = "rss"
		}
		if src.Type != "rss" {
			return fmt.Errorf("source %s: unsupported type %s", name, src.Type)
		}
		if src.FeedURL == "" {
			return fmt.Errorf("source %s: feed_url is required", name)
		}
		config.Sources[name] = src
	}
	if enabledSources == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	return validateTopics(config.Topics)
}

func validateTopics(topics []TopicConfig) error {
	if len(topics) == 0 {
		return fmt.Errorf("at least one topic must be configured")
	}

	seen := make(map[string]int, len(topics))
	for i := range topics {
		t := &topics[i]
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("topic %d: name is required", i)
		}
		if t.TopicKey == "" {
			t.TopicKey = TopicKeyFromName(t.Name)
		}
		if prev, dup := seen[t.TopicKey]; dup {
			return fmt.Errorf("topic %d: duplicate topic_key %q (also topic %d)", i, t.TopicKey, prev)
		}
		seen[t.TopicKey] = i

		if len(t.Queries) == 0 {
			return fmt.Errorf("topic %s: at least one query is required", t.TopicKey)
		}

		if t.CadenceMinutes == nil {
			t.CadenceMinutes = intPtr(DefaultCadenceMinutes)
		}
		if *t.CadenceMinutes <= 0 {
			return fmt.Errorf("topic %s: cadence_minutes must be positive", t.TopicKey)
		}
		if t.MaxPostsPerRun == nil {
			t.MaxPostsPerRun = intPtr(DefaultMaxPostsPerRun)
		}
		if *t.MaxPostsPerRun <= 0 {
			return fmt.Errorf("topic %s: max_posts_per_run must be positive", t.TopicKey)
		}
		if t.BoostFactor == nil {
			t.BoostFactor = floatPtr(DefaultBoostFactor)
		}
		if *t.BoostFactor < 0 {
			return fmt.Errorf("topic %s: boost_factor must not be negative", t.TopicKey)
		}
		if t.MinScore == nil {
			t.MinScore = floatPtr(DefaultMinScore)
		}
		if *t.MinScore < 0 || *t.MinScore > 1 {
			return fmt.Errorf("topic %s: min_score must be in [0, 1]", t.TopicKey)
		}
		if t.Enabled == nil {
			enabled := true
			t.Enabled = &enabled
		}
	}
	return nil
}

// TopicKeyFromName lower-cases name and joins its alphanumeric runs with underscores.
func TopicKeyFromName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "_")
}

// EngineTopics returns the validated topics in configured order.
func (c *Config) EngineTopics() []types.TopicConfig {
	out := make([]types.TopicConfig, 0, len(c.Topics))
	for _, t := range c.Topics {
		out = append(out, t.ToTopic())
	}
	return out
}

func (t TopicConfig) ToTopic() types.TopicConfig {
	topic := types.TopicConfig{
		Name:           t.Name,
		TopicKey:       t.TopicKey,
		Queries:        append([]string(nil), t.Queries...),
		AllowDomains:   append([]string(nil), t.AllowDomains...),
		Lang:           t.Lang,
		CadenceMinutes: DefaultCadenceMinutes,
		MaxPostsPerRun: DefaultMaxPostsPerRun,
		BoostFactor:    DefaultBoostFactor,
		MinScore:       DefaultMinScore,
		Enabled:        true,
	}
	if t.CadenceMinutes != nil {
		topic.CadenceMinutes = *t.CadenceMinutes
	}
	if t.MaxPostsPerRun != nil {
		topic.MaxPostsPerRun = *t.MaxPostsPerRun
	}
	if t.BoostFactor != nil {
		topic.BoostFactor = *t.BoostFactor
	}
	if t.MinScore != nil {
		topic.MinScore = *t.MinScore
	}
	if t.Enabled != nil {
		topic.Enabled = *t.Enabled
	}
	return topic
}

// GetDuration parses value, returning defaultValue when it is empty or invalid.
func GetDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
