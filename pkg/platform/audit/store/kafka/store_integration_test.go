//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "vektorkite/pkg/domain"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/platform/audit/store/kafka"
	"vektorkite/pkg/testutil/containers"
)

type KafkaAuditSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaAuditSuite))
}

func (s *KafkaAuditSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaAuditSuite) TestAppendProducesKeyedRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "audit-" + uuid.NewString()
	store, err := kafka.New(ctx, s.redpanda.Brokers, kafka.WithTopic(topic), kafka.WithPartitions(1))
	s.Require().NoError(err)
	defer store.Close()

	userID := id.NewUserID()
	event := audit.NewEvent(ctx, audit.EventRegistrationSubmitted)
	event.UserID = userID
	s.Require().NoError(store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal(userID.String(), string(records[0].Key))

	var got audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(event.ID, got.ID)
	s.Equal(userID, got.UserID)
	s.Equal(audit.CategoryCompliance, got.Category)
}

func (s *KafkaAuditSuite) TestNewIsIdempotentForExistingTopic() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "audit-" + uuid.NewString()
	first, err := kafka.New(ctx, s.redpanda.Brokers, kafka.WithTopic(topic))
	s.Require().NoError(err)
	first.Close()

	second, err := kafka.New(ctx, s.redpanda.Brokers, kafka.WithTopic(topic))
	s.Require().NoError(err)
	second.Close()
}
