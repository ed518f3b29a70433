// Package kafka consumes attempt events from a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultRetryDelay = 50 * time.Millisecond

// Ingester accepts decoded events.
type Ingester interface {
	Ingest(ctx context.Context, e model.Event) error
}

// Config selects the cluster and topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Version string
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the consumer logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryDelay sets the pause between attempts while the queue is full.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// Consumer runs a sarama consumer group and forwards events to an Ingester.
type Consumer struct {
	group      sarama.ConsumerGroup
	topic      string
	ingester   Ingester
	logger     logger.Logger
	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer joins the consumer group described by cfg.
func NewConsumer(cfg Config, ingester Ingester, opts ...Option) (*Consumer, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version %q: %w", cfg.Version, err)
		}
		sc.Version = v
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return newConsumer(group, cfg.Topic, ingester, opts...), nil
}

func newConsumer(group sarama.ConsumerGroup, topic string, ingester Ingester, opts ...Option) *Consumer {
	c := &Consumer{
		group:      group,
		topic:      topic,
		ingester:   ingester,
		logger:     logger.Discard(),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start consumes in the background until Close.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info(ctx, "starting kafka consumer", logger.String("topic", c.topic))

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		h := &handler{ingester: c.ingester, logger: c.logger, retryDelay: c.retryDelay}
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error(ctx, "kafka consume failed", logger.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				metrics.RecordErrorByComponent("kafka", "consumer")
				c.logger.Error(ctx, "kafka consumer group error", logger.Error(err))
			}
		}
	}()
}

// Close stops consuming and leaves the group.
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// Decode parses one message value.
func Decode(value []byte) (model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(value, &e); err != nil {
		return model.Event{}, fmt.Errorf("%w: decode event: %v", model.ErrValidation, err)
	}
	return e, nil
}

// handler implements sarama.ConsumerGroupHandler.
type handler struct {
	ingester   Ingester
	logger     logger.Logger
	retryDelay time.Duration
}

func (h *handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *handler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.handle(ctx, msg) {
				// session ended mid-retry; leave the offset for redelivery
				return nil
			}
			session.MarkMessage(msg, "")
		}
	}
}

// handle reports false when the message must not be marked.
func (h *handler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	e, err := Decode(msg.Value)
	if err != nil {
		h.logger.Warn(ctx, "dropping undecodable event",
			logger.Error(err),
			logger.Int("partition", int(msg.Partition)),
			logger.Int64("offset", msg.Offset),
		)
		return true
	}
	for {
		err := h.ingester.Ingest(ctx, e)
		switch {
		case err == nil:
			return true
		case errors.Is(err, queue.ErrFull):
			select {
			case <-ctx.Done():
				return false
			case <-time.After(h.retryDelay):
			}
		default:
			h.logger.Warn(ctx, "dropping rejected event",
				logger.String("event_id", e.EventID),
				logger.Error(err),
			)
			return true
		}
	}
}
