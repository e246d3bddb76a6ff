package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// FallbackStore serves from Redis until the first failure and from memory afterwards.
// The switch is one-way for the life of the process. Errors caused by the caller's
// own context ending do not count as failures.
type FallbackStore struct {
	primary  *RedisStore
	memory   *MemoryStore
	degraded atomic.Bool
	logger   *slog.Logger
}

func NewFallbackStore(primary *RedisStore, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FallbackStore{
		primary: primary,
		memory:  NewMemoryStore(logger),
		logger:  logger,
	}
	if primary == nil {
		s.degraded.Store(true)
	}
	return s
}

func (s *FallbackStore) Record(ctx context.Context, clusterID int64, count int, now time.Time) {
	if !s.degraded.Load() {
		err := s.primary.Record(ctx, clusterID, count)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			s.logger.Debug("History write abandoned", "cluster_id", clusterID, "error", err)
			return
		}
		s.degrade(err)
	}
	s.memory.Record(ctx, clusterID, count, now)
}

func (s *FallbackStore) Window(ctx context.Context, clusterID int64) []int {
	if !s.degraded.Load() {
		points, err := s.primary.Window(ctx, clusterID)
		if err == nil {
			return points
		}
		if ctx.Err() != nil {
			return nil
		}
		s.degrade(err)
	}
	return s.memory.Window(ctx, clusterID)
}

// Degraded reports whether the store has switched to memory.
func (s *FallbackStore) Degraded() bool {
	return s.degraded.Load()
}

func (s *FallbackStore) degrade(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("Redis history unavailable, switching to in-memory history", "error", err)
	}
}

func (s *FallbackStore) Close() error {
	var err error
	if s.primary != nil {
		err = s.primary.Close()
	}
	s.memory.Close()
	return err
}

type Options struct {
	Backend     string
	RedisURL    string
	OpTimeout   time.Duration
	DialTimeout time.Duration
}

// ClosableStore is a Store that owns connections.
type ClosableStore interface {
	Store
	Close() error
}

// New builds the configured backend. A redis backend that cannot be reached at
// startup begins in memory.
func New(ctx context.Context, opts Options, logger *slog.Logger) (ClosableStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "", "memory":
		logger.Info("Using in-memory cluster history")
		return NewMemoryStore(logger), nil
	case "redis":
		if opts.DialTimeout <= 0 {
			opts.DialTimeout = 2 * time.Second
		}
		client, err := DialRedis(ctx, opts.RedisURL, opts.DialTimeout)
		if err != nil {
			logger.Warn("Redis history unavailable at startup, using in-memory history", "error", err)
			return NewFallbackStore(nil, logger), nil
		}
		logger.Info("Using redis cluster history", "addr", client.Options().Addr)
		return NewFallbackStore(NewRedisStore(client, opts.OpTimeout), logger), nil
	}
	return nil, fmt.Errorf("unsupported history backend: %s", opts.Backend)
}
