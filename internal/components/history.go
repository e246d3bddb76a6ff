package components

import (
	"context"
	"fmt"
	"log/slog"

	"trender/internal/history"
)

type HistoryComponent struct {
	opts   history.Options
	store  history.ClosableStore
	logger *slog.Logger
}

func NewHistoryComponent(opts history.Options, logger *slog.Logger) *HistoryComponent {
	return &HistoryComponent{opts: opts, logger: logger}
}

func (c *HistoryComponent) Name() string {
	return HistoryComponentName
}

func (c *HistoryComponent) Dependencies() []string {
	return []string{}
}

func (c *HistoryComponent) Validate() error {
	if c.opts.Backend == "redis" && c.opts.RedisURL == "" {
		return fmt.Errorf("history: redis_url is required for the redis backend")
	}
	return nil
}

func (c *HistoryComponent) Initialize(ctx context.Context) error {
	store, err := history.New(ctx, c.opts, c.logger)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	c.store = store
	return nil
}

func (c *HistoryComponent) Close(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *HistoryComponent) Store() history.Store {
	return c.store
}
