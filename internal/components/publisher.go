package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"trender/internal/config"
	"trender/internal/report"
)

// PublisherComponent owns the report publishers and, when enabled, the NATS connection.
type PublisherComponent struct {
	cfg        config.NATSConfig
	clientName string
	conn       *nats.Conn
	publishers []report.Publisher
	logger     *slog.Logger
}

func NewPublisherComponent(cfg config.NATSConfig, clientName string, logger *slog.Logger) *PublisherComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublisherComponent{cfg: cfg, clientName: clientName, logger: logger}
}

func (c *PublisherComponent) Name() string {
	return PublisherComponentName
}

func (c *PublisherComponent) Dependencies() []string {
	return []string{}
}

func (c *PublisherComponent) Validate() error {
	if c.cfg.Enabled && c.cfg.Subject == "" {
		return fmt.Errorf("publisher: nats subject is required")
	}
	return nil
}

func (c *PublisherComponent) Initialize(ctx context.Context) error {
	c.publishers = []report.Publisher{report.NewLogPublisher(c.logger)}

	if !c.cfg.Enabled {
		return nil
	}

	conn, err := report.ConnectNATS(c.cfg.URL, c.clientName)
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	c.conn = conn

	timeout := config.GetDuration(c.cfg.Timeout, 5*time.Second)
	c.publishers = append(c.publishers, report.NewNATSPublisher(conn, c.cfg.Subject, timeout))
	c.logger.Info("Publishing run reports to NATS", "subject", c.cfg.Subject)
	return nil
}

func (c *PublisherComponent) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("publisher: failed to drain nats connection: %w", err)
	}
	return nil
}

func (c *PublisherComponent) Publishers() []report.Publisher {
	return c.publishers
}
