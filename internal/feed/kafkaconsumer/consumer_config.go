package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/geocached/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	// SeenSize bounds the per-id timestamp memory used to drop stale events.
	SeenSize int
}

func FromConfig(f config.FeedCfg) Config {
	brokers := f.Brokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	topic := f.Topic
	if topic == "" {
		topic = "object-locations"
	}
	group := f.GroupID
	if group == "" {
		group = "geocached"
	}

	return Config{
		Brokers:             brokers,
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
		SeenSize:            8192,
	}
}
