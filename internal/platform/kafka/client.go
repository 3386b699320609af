package kafka

import (
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"vestry/internal/platform/config"
)

// New builds a franz-go client for the audit relay.
// Returns nil if no brokers are configured (Kafka not configured).
func New(cfg config.KafkaConfig) (*kgo.Client, error) {
	if cfg.Brokers == "" {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("build kafka client: %w", err)
	}
	return client, nil
}
