// Package kafka streams audit events to a Kafka topic for downstream
// compliance consumers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "vektorkite/pkg/platform/audit"
)

const DefaultTopic = "vektorkite.audit"

// Store implements audit.Store by producing one record per event, keyed by
// user id so a user's events stay ordered within a partition.
type Store struct {
	client *kgo.Client
	topic  string
}

type Option func(*config)

type config struct {
	topic          string
	partitions     int32
	replicas       int16
	produceTimeout time.Duration
}

func WithTopic(topic string) Option {
	return func(c *config) { c.topic = topic }
}

func WithPartitions(n int32) Option {
	return func(c *config) { c.partitions = n }
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, opts ...Option) (*Store, error) {
	cfg := config{topic: DefaultTopic, partitions: 3, replicas: 1, produceTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(cfg.topic),
		kgo.ProduceRequestTimeout(cfg.produceTimeout),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, kadm.NewClient(client), cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &Store{client: client, topic: cfg.topic}, nil
}

func ensureTopic(ctx context.Context, admin *kadm.Client, cfg config) error {
	resp, err := admin.CreateTopics(ctx, cfg.partitions, cfg.replicas, nil, cfg.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Append produces the event synchronously.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if !event.UserID.IsNil() {
		record.Key = []byte(event.UserID.String())
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}
