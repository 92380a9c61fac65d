package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"scriptcheck/internal/logging"
	"scriptcheck/internal/services"
)

// Delivery is one message handed to a consumer. DeliveryCount is the
// broker-side count, starting at 1 for a fresh message and incremented each
// time the entry is reclaimed from another consumer.
type Delivery struct {
	Queue         string
	ID            string
	Body          []byte
	DeliveryCount int64
}

// HandlerFunc processes one delivery. The returned error's classification
// (see services.Classify) decides the message's fate: nil and conflicts are
// acknowledged, retryable failures stay pending for redelivery until the
// delivery budget runs out, everything else is dead-lettered.
type HandlerFunc func(ctx context.Context, delivery Delivery) error

// DeadLetterQueue returns the dead-letter stream name for a queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}

// Consume reads the queue one message at a time until the context is
// canceled. Each read first reclaims entries other consumers left pending
// beyond the redelivery deadline, then blocks for new messages. Handler
// invocations are strictly sequential within one consumer.
func (c *Client) Consume(ctx context.Context, queue, consumer string, handler HandlerFunc) error {
	if err := c.ensureGroup(ctx, queue); err != nil {
		return err
	}

	logger := c.logger.With(
		logging.String(logging.FieldQueue, queue),
		logging.String("consumer", consumer),
	)
	logger.Info("consumer started")

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("consumer stopped")
			return nil
		}

		if err := c.reclaimStale(ctx, queue, consumer, handler, logger); err != nil {
			if ctx.Err() != nil {
				logger.Info("consumer stopped")
				return nil
			}
			logger.Warn("reclaim pass failed", logging.Error(err))
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.ConsumerGroup,
			Consumer: consumer,
			Streams:  []string{queue, ">"},
			Count:    1,
			Block:    time.Duration(c.cfg.BlockSeconds) * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("consumer stopped")
				return nil
			}
			logger.Warn("read failed, backing off", logging.Error(err))
			select {
			case <-ctx.Done():
				logger.Info("consumer stopped")
				return nil
			case <-time.After(time.Duration(c.cfg.BlockSeconds) * time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.dispatch(ctx, queue, handler, Delivery{
					Queue:         queue,
					ID:            message.ID,
					Body:          messageBody(message),
					DeliveryCount: 1,
				}, logger)
			}
		}
	}
}

// reclaimStale claims messages another consumer read but never acknowledged,
// once they have sat idle past the redelivery deadline. Entries that already
// burned through the delivery budget go to the dead-letter stream instead.
func (c *Client) reclaimStale(ctx context.Context, queue, consumer string, handler HandlerFunc, logger *slog.Logger) error {
	minIdle := time.Duration(c.cfg.RedeliverAfterSeconds) * time.Second
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: queue,
		Group:  c.cfg.ConsumerGroup,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  16,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, entry := range pending {
		claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
			Stream:   queue,
			Group:    c.cfg.ConsumerGroup,
			Consumer: consumer,
			MinIdle:  minIdle,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}

		for _, message := range claimed {
			delivery := Delivery{
				Queue:         queue,
				ID:            message.ID,
				Body:          messageBody(message),
				DeliveryCount: entry.RetryCount + 1,
			}
			if delivery.DeliveryCount > int64(c.cfg.MaxDeliveries) {
				logger.Warn("delivery budget exhausted, dead-lettering",
					logging.String("message_id", message.ID),
					logging.Int64("delivery_count", delivery.DeliveryCount))
				c.deadLetter(ctx, delivery, errors.New("delivery budget exhausted"))
				c.ack(ctx, queue, message.ID)
				continue
			}
			c.dispatch(ctx, queue, handler, delivery, logger)
		}
	}
	return nil
}

// dispatch runs the handler and settles the message per the error taxonomy.
func (c *Client) dispatch(ctx context.Context, queue string, handler HandlerFunc, delivery Delivery, logger *slog.Logger) {
	err := handler(ctx, delivery)
	if err == nil {
		c.ack(ctx, queue, delivery.ID)
		return
	}

	kind := services.Classify(err)
	switch {
	case kind == services.KindConflict:
		// Another worker owns this job. Not an error.
		logger.Info("duplicate delivery dropped",
			logging.String("message_id", delivery.ID),
			logging.Error(err))
		c.ack(ctx, queue, delivery.ID)

	case kind.Retryable():
		if delivery.DeliveryCount >= int64(c.cfg.MaxDeliveries) {
			logger.Warn("retryable failure out of deliveries, dead-lettering",
				logging.String("message_id", delivery.ID),
				logging.String(logging.FieldErrorKind, string(kind)),
				logging.Int64("delivery_count", delivery.DeliveryCount),
				logging.Error(err))
			c.deadLetter(ctx, delivery, err)
			c.ack(ctx, queue, delivery.ID)
			return
		}
		// Leave the entry pending; it is redelivered after the idle
		// deadline, with the broker tracking the count.
		logger.Warn("retryable failure, leaving pending for redelivery",
			logging.String("message_id", delivery.ID),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Int64("delivery_count", delivery.DeliveryCount),
			logging.Error(err))

	default:
		// Validation, configuration, unknown: retrying cannot fix these.
		logger.Warn("terminal failure, dead-lettering",
			logging.String("message_id", delivery.ID),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Error(err))
		c.deadLetter(ctx, delivery, err)
		c.ack(ctx, queue, delivery.ID)
	}
}

func (c *Client) ack(ctx context.Context, queue, id string) {
	if err := c.rdb.XAck(ctx, queue, c.cfg.ConsumerGroup, id).Err(); err != nil {
		c.logger.Warn("ack failed",
			logging.String(logging.FieldQueue, queue),
			logging.String("message_id", id),
			logging.Error(err))
	}
}

// deadLetter copies a poisoned message to the queue's dead-letter stream so
// an operator can inspect or replay it.
func (c *Client) deadLetter(ctx context.Context, delivery Delivery, cause error) {
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterQueue(delivery.Queue),
		Values: map[string]any{
			"body":           string(delivery.Body),
			"source":         delivery.Queue,
			"error":          cause.Error(),
			"error_kind":     string(services.Classify(cause)),
			"delivery_count": delivery.DeliveryCount,
		},
	}).Err()
	if err != nil {
		c.logger.Error("dead-letter append failed",
			logging.String(logging.FieldQueue, delivery.Queue),
			logging.String("message_id", delivery.ID),
			logging.Error(err))
	}
}

func messageBody(message redis.XMessage) []byte {
	if raw, ok := message.Values["body"]; ok {
		if body, ok := raw.(string); ok {
			return []byte(body)
		}
	}
	return nil
}
