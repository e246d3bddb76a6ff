package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trender/internal/cadence"
	"trender/internal/clustering"
	"trender/internal/components"
	"trender/internal/config"
	"trender/internal/core"
	"trender/internal/history"
	"trender/internal/pipeline"
	"trender/internal/sources"
	"trender/internal/state"
	"trender/internal/storage"
	"trender/internal/trender"

	_ "trender/internal/storage/sqlite"
)

type Loader struct {
	config *config.Config
	logger *slog.Logger
}

func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: cfg,
		logger: logger,
	}
}

func (l *Loader) Initialize(ctx context.Context) (*state.State, error) {
	registry := components.NewRegistry(l.logger)
	l.logger.Info("Initializing all components")

	if l.config.Storage.Type == "sqlite" {
		if err := registry.Register(components.NewStorageComponent(l.config.Storage)); err != nil {
			return nil, fmt.Errorf("failed to register storage component: %w", err)
		}
	}

	historyComp := components.NewHistoryComponent(l.historyOptions(), l.logger)
	if err := registry.Register(historyComp); err != nil {
		return nil, fmt.Errorf("failed to register history component: %w", err)
	}

	publisherComp := components.NewPublisherComponent(l.config.NATS, l.config.Engine.Name, l.logger)
	if err := registry.Register(publisherComp); err != nil {
		return nil, fmt.Errorf("failed to register publisher component: %w", err)
	}

	if err := registry.InitializeAll(ctx); err != nil {
		return nil, fmt.Errorf("component initialization failed: %w", err)
	}

	l.logger.Info("All components initialized successfully")

	var (
		cadenceStore cadence.Store
		scoreStore   storage.ScoreStore
	)
	if storageComp, err := components.Lookup[*components.StorageComponent](registry, components.StorageComponentName); err == nil {
		cadenceStore = storageComp.Store().Cadence()
		scoreStore = storageComp.Store().Scores()
	} else {
		l.logger.Info("Running without storage; cadence is kept in memory")
	}

	engine, err := l.buildEngine(historyComp.Store(), cadenceStore, scoreStore, publisherComp)
	if err != nil {
		registry.CloseAll(ctx)
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	bot := core.NewBot(core.BotConfig{
		Name:       l.config.Engine.Name,
		Runner:     engine,
		Interval:   config.GetDuration(l.config.Engine.Interval, 5*time.Minute),
		RunTimeout: config.GetDuration(l.config.Engine.RunTimeout, 4*time.Minute),
		RunOnce:    l.config.Engine.RunOnce,
		Logger:     l.logger,
		ShutdownFn: func() error {
			return registry.CloseAll(context.Background())
		},
	})

	return state.NewState(l.config, registry, engine, bot), nil
}

func (l *Loader) historyOptions() history.Options {
	h := l.config.History
	return history.Options{
		Backend:     h.Backend,
		RedisURL:    h.RedisURL,
		OpTimeout:   config.GetDuration(h.OpTimeout, 500*time.Millisecond),
		DialTimeout: config.GetDuration(h.DialTimeout, 2*time.Second),
	}
}

func (l *Loader) buildEngine(hist history.Store, cadenceStore cadence.Store, scores storage.ScoreStore, publishers *components.PublisherComponent) (*core.Engine, error) {
	cl := l.config.Clustering
	clusterer := clustering.NewHeuristic(clustering.HeuristicConfig{
		SimilarityThreshold: cl.SimilarityThreshold,
		Window:              config.GetDuration(cl.Window, 24*time.Hour),
		CloseAfter:          config.GetDuration(cl.CloseAfter, 72*time.Hour),
		MaxClusterSize:      cl.MaxClusterSize,
	})

	eng := l.config.Engine
	manager := trender.NewManager(trender.ManagerOptions{
		Config: trender.Config{
			MaxClustersPerTopic: eng.MaxClustersPerTopic,
			TauHours:            eng.TauHours,
			ClusterTimeout:      config.GetDuration(eng.ClusterTimeout, 30*time.Second),
		},
		Clusterer: clusterer,
		History:   hist,
		Cadence:   cadence.NewManager(cadenceStore),
		Scores:    scores,
		Logger:    l.logger,
	})

	orchestrator := pipeline.New(pipeline.Options{
		Manager: manager,
		Topics:  l.config.EngineTopics(),
		Workers: eng.Workers,
		Logger:  l.logger,
	})

	srcs, err := l.buildSources()
	if err != nil {
		return nil, err
	}

	var retention time.Duration
	if scores != nil {
		retention = config.GetDuration(l.config.Storage.Retention, 0)
	}

	return core.NewEngine(core.EngineConfig{
		Sources:      srcs,
		Orchestrator: orchestrator,
		Publishers:   publishers.Publishers(),
		Scores:       scores,
		Retention:    retention,
		Logger:       l.logger,
	}), nil
}

func (l *Loader) buildSources() ([]sources.Source, error) {
	names := make([]string, 0, len(l.config.Sources))
	for name := range l.config.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var srcs []sources.Source
	for _, name := range names {
		cfg := l.config.Sources[name]
		if !cfg.Enabled {
			continue
		}
		src, err := l.createSource(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create source %s: %w", name, err)
		}
		srcs = append(srcs, src)
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("no enabled sources")
	}
	return srcs, nil
}

func (l *Loader) createSource(name string, cfg config.SourceConfig) (sources.Source, error) {
	switch cfg.Type {
	case "", "rss":
		if cfg.FeedURL == "" {
			return nil, fmt.Errorf("feed_url is required for RSS source")
		}
		return sources.NewRSSSource(sources.RSSConfig{
			Name:     name,
			FeedURL:  cfg.FeedURL,
			Lang:     cfg.Lang,
			MaxItems: cfg.MaxItems,
			Logger:   l.logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}

// LoadAndBuild reads the config at configPath and wires a ready-to-start state.
func LoadAndBuild(ctx context.Context, configPath string, logger *slog.Logger) (*state.State, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewLoader(cfg, logger).Initialize(ctx)
}
