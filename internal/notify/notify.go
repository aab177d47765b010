// Package notify publishes change events so read-side observers (dashboards)
// can refresh without polling. The pipeline is the sole writer; observers only
// ever see "items changed" signals, never data.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DNABoe/jetmonitor/internal/config"
)

// ItemsChangedEvent is published after a collection run stores new items.
type ItemsChangedEvent struct {
	Country string    `json:"country"`
	Stored  int       `json:"stored"`
	At      time.Time `json:"at"`
}

// Notifier publishes change events. Implementations must be safe to call
// from concurrent collection runs.
type Notifier interface {
	ItemsChanged(ctx context.Context, country string, stored int) error
}

// RedisNotifier publishes events on a redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// New returns a redis-backed notifier, or a Noop when no address is
// configured.
func New(cfg config.RedisConfig, logger *slog.Logger) Notifier {
	if cfg.Addr == "" {
		logger.Warn("redis not configured, change notifications disabled")
		return Noop{}
	}
	return &RedisNotifier{
		client:  redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		channel: cfg.Channel,
		logger:  logger,
	}
}

// ItemsChanged publishes one event for a completed store batch.
func (n *RedisNotifier) ItemsChanged(ctx context.Context, country string, stored int) error {
	payload, err := json.Marshal(ItemsChangedEvent{
		Country: country,
		Stored:  stored,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	n.logger.Debug("published items changed", "country", country, "stored", stored)
	return nil
}

// Close releases the redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// Noop is the notifier used when redis is not configured.
type Noop struct{}

// ItemsChanged does nothing.
func (Noop) ItemsChanged(context.Context, string, int) error { return nil }
