// Package kafkaconsumer feeds location events from a Kafka topic into the
// object store.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/geocached/internal/feed"
	mylog "github.com/mohammed-shakir/geocached/internal/logger"
)

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	zlog    zerolog.Logger
	applier *feed.Applier

	mu       sync.RWMutex
	assigned map[int32]struct{}
	ready    bool
}

func New(cfg Config, logger *slog.Logger, zl zerolog.Logger, store feed.Store) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	var applier *feed.Applier
	if store != nil {
		applier = feed.NewApplier(store, cfg.SeenSize)
	}
	return &Consumer{
		cfg:      cfg,
		logger:   logger,
		zlog:     zl.With().Str("component", "kafka_consumer").Logger(),
		applier:  applier,
		assigned: map[int32]struct{}{},
	}
}

// Start consumes until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.applier == nil {
		return errors.New("kafkaconsumer: missing store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{
		setup:   c.onAssign,
		cleanup: func(sarama.ConsumerGroupSession) { c.onRevoke() },
		process: c.ProcessOne,
	}

	c.logger.Info("kafka location consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.zlog.Error().Err(err).
				Strs("brokers", c.cfg.Brokers).
				Str("topic", c.cfg.Topic).
				Msg("kafka consumer error")
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.logger.Info("kafka location consumer shutting down")
	return nil
}

// ProcessOne applies a single message. Malformed, stale and rejected events
// are logged and skipped so the partition keeps moving.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("before apply: %w", err)
	}

	l := mylog.FromContext(ctx, &c.zlog)

	ev, err := feed.Decode(msg.Value)
	if err != nil {
		l.Warn().Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping malformed location event")
		return nil
	}

	res, err := c.applier.Apply(ev)
	if err != nil {
		l.Warn().Err(err).Str("id", ev.ID).Str("op", string(ev.Op)).Msg("dropping invalid location event")
		return nil
	}

	evl := l.Debug()
	if res == feed.Rejected {
		evl = l.Info()
	}
	evl.Str("event", "location").
		Str("op", string(ev.Op)).
		Str("id", ev.ID).
		Str("result", string(res)).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("location event processed")
	return nil
}

// Readiness reports whether the group currently holds partitions.
func (c *Consumer) Readiness() (ready bool, partitions []int32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return false, nil
	}
	for p := range c.assigned {
		partitions = append(partitions, p)
	}
	slices.Sort(partitions)
	return true, partitions
}

func (c *Consumer) onAssign(sess sarama.ConsumerGroupSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = map[int32]struct{}{}
	for _, parts := range sess.Claims() {
		for _, p := range parts {
			c.assigned[p] = struct{}{}
		}
	}
	c.ready = true
}

func (c *Consumer) onRevoke() {
	c.mu.Lock()
	c.ready = false
	c.assigned = map[int32]struct{}{}
	c.mu.Unlock()
}
