package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const reconnectWait = 2 * time.Second

// WithNatsLogger sets the logger for connection events.
func WithNatsLogger(logger *slog.Logger) func(*NatsChannel) {
	return func(c *NatsChannel) {
		c.logger = logger.With(slog.String("component", "bus"))
	}
}

// NatsChannel is a Channel over a NATS connection. The connection
// retries forever: the engine runs unattended and the bus being down
// must never take the acquisition loop with it.
type NatsChannel struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNatsChannel connects to the NATS server at url.
func NewNatsChannel(url string, options ...func(*NatsChannel)) (*NatsChannel, error) {
	c := NatsChannel{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	opts := []nats.Option{
		nats.Name("psd-sensor"),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1), // retry forever
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("bus disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("bus reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("bus connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	c.conn = conn
	return &c, nil
}

func (c *NatsChannel) Publish(_ context.Context, subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err = c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing on %s: %w", subject, err)
	}

	return nil
}

func (c *NatsChannel) Subscribe(subject string, fn Handler) (Subscription, error) {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	return sub, nil
}

func (c *NatsChannel) Close() error {
	c.conn.Close()
	return nil
}
