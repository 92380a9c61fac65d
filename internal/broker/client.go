package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"scriptcheck/internal/config"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/services"
)

// ErrBrokerUnavailable reports that the broker could not be reached after the
// configured number of publish attempts.
var ErrBrokerUnavailable = errors.New("broker unavailable")

const publishBackoffBase = 250 * time.Millisecond

// Client is the durable message client backed by Redis Streams. Each queue is
// one stream consumed through a shared consumer group, which gives
// broker-side offsets, per-message delivery counts, and load balancing across
// worker instances.
type Client struct {
	rdb    *redis.Client
	cfg    config.Broker
	logger *slog.Logger
}

// New parses the broker URL and builds a client. The connection itself is
// established lazily per command.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.Broker.URL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "broker", "connect", "parse broker url", err)
	}
	return &Client{
		rdb:    redis.NewClient(opts),
		cfg:    cfg.Broker,
		logger: logging.NewComponentLogger(logger, "broker"),
	}, nil
}

// NewWithRedis wraps an existing Redis client. Tests use this with miniredis.
func NewWithRedis(rdb *redis.Client, cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		rdb:    rdb,
		cfg:    cfg.Broker,
		logger: logging.NewComponentLogger(logger, "broker"),
	}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies broker reachability.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return services.Wrap(services.ErrTransient, "broker", "ping", "broker unreachable", err)
	}
	return nil
}

// Publish JSON-encodes the payload and appends it to the queue's stream. The
// append is retried with exponential backoff; once the attempt budget is
// spent the error wraps ErrBrokerUnavailable.
func (c *Client) Publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "broker", "publish", "encode message", err)
	}

	var lastErr error
	delay := publishBackoffBase
	for attempt := 1; attempt <= c.cfg.PublishAttempts; attempt++ {
		err := c.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: queue,
			Values: map[string]any{"body": string(body)},
		}).Err()
		if err == nil {
			c.logger.Debug("message published",
				logging.String(logging.FieldQueue, queue),
				logging.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		c.logger.Warn("publish attempt failed",
			logging.String(logging.FieldQueue, queue),
			logging.Int("attempt", attempt),
			logging.Error(err))

		if attempt == c.cfg.PublishAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrTransient, "broker", "publish", "publish canceled", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return services.Wrap(
		services.ErrTransient,
		"broker",
		"publish",
		fmt.Sprintf("%s after %d attempts (%v)", ErrBrokerUnavailable, c.cfg.PublishAttempts, lastErr),
		ErrBrokerUnavailable,
	)
}

// ensureGroup creates the consumer group from the start of the stream if it
// does not exist yet.
func (c *Client) ensureGroup(ctx context.Context, queue string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, queue, c.cfg.ConsumerGroup, "0").Err()
	if err == nil || isBusyGroup(err) {
		return nil
	}
	return services.Wrap(services.ErrTransient, "broker", "consume", "create consumer group", err)
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}
