package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner is one unit of scheduled work.
type Runner interface {
	Run(ctx context.Context) error
}

// Bot runs a Runner once or on a fixed interval until stopped.
type Bot struct {
	name       string
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	runOnce    bool
	logger     *slog.Logger
	shutdownFn func() error

	mu      sync.RWMutex
	running bool
	done    chan struct{}
	stats   RunStats

	stopCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
	errorCh  chan error
}

type BotConfig struct {
	Name   string
	Runner Runner
	// Interval between run starts in continuous mode.
	Interval time.Duration
	// RunTimeout bounds a single run; it never exceeds Interval.
	RunTimeout time.Duration
	RunOnce    bool
	Logger     *slog.Logger
	// ShutdownFn releases resources after the loop has stopped.
	ShutdownFn func() error
}

// RunStats counts completed runs.
type RunStats struct {
	Runs      int
	Failures  int
	LastStart time.Time
	LastError error
}

func NewBot(config BotConfig) *Bot {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.RunTimeout <= 0 || config.RunTimeout > config.Interval {
		config.RunTimeout = config.Interval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Bot{
		name:       config.Name,
		runner:     config.Runner,
		interval:   config.Interval,
		runTimeout: config.RunTimeout,
		runOnce:    config.RunOnce,
		logger:     config.Logger.With("bot", config.Name),
		shutdownFn: config.ShutdownFn,
		stopCh:     make(chan struct{}),
		errorCh:    make(chan error, 10),
	}
}

// Start blocks until the run completes in run-once mode, or until ctx is done or Stop
// is called in continuous mode. In run-once mode the run's error is returned; in
// continuous mode errors go to Errors.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot %s already running", b.name)
	}
	b.running = true
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		close(done)
	}()

	if b.runOnce {
		b.logger.Info("Running once")
		return b.execute(ctx)
	}

	b.logger.Info("Running continuously", "interval", b.interval)
	return b.loop(ctx)
}

func (b *Bot) loop(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopCh:
			return nil
		case <-timer.C:
			started := time.Now()
			if err := b.execute(ctx); err != nil {
				select {
				case b.errorCh <- err:
				default:
					b.logger.Warn("Error channel full, dropping run error", "error", err)
				}
			}
			// Keep run starts on the interval grid; an overrunning run starts the next at once.
			timer.Reset(max(0, b.interval-time.Since(started)))
		}
	}
}

func (b *Bot) execute(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, b.runTimeout)
	defer cancel()

	started := time.Now()
	err := b.runner.Run(runCtx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("run failed: %w", err)
	}

	b.mu.Lock()
	b.stats.Runs++
	b.stats.LastStart = started
	b.stats.LastError = err
	if err != nil {
		b.stats.Failures++
	}
	b.mu.Unlock()

	if err != nil {
		b.logger.Error("Run failed", "error", err, "duration", time.Since(started))
		return err
	}
	b.logger.Debug("Run completed", "duration", time.Since(started))
	return nil
}

// Stop ends the loop, waits for an in-flight run up to ctx's deadline, then runs the
// shutdown function. Later calls return the first call's result.
func (b *Bot) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		close(b.stopCh)

		b.mu.RLock()
		done := b.done
		b.mu.RUnlock()

		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				b.logger.Warn("Timed out waiting for the current run to finish")
			}
		}

		if b.shutdownFn != nil {
			if err := b.shutdownFn(); err != nil {
				b.stopErr = fmt.Errorf("shutdown failed: %w", err)
			}
		}
	})
	return b.stopErr
}

func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bot) Name() string {
	return b.name
}

func (b *Bot) Errors() <-chan error {
	return b.errorCh
}

func (b *Bot) Stats() RunStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}
