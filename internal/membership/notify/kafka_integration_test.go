//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"orgapi/internal/membership/models"
	"orgapi/internal/membership/notify"
	"orgapi/internal/platform/config"
	platformkafka "orgapi/internal/platform/kafka"
	id "orgapi/pkg/domain"
	"orgapi/pkg/testutil/containers"
)

type KafkaNotifierSuite struct {
	suite.Suite
	cfg      config.KafkaConfig
	producer *kgo.Client
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	broker := containers.GetManager().GetRedpanda(s.T())
	s.cfg = config.KafkaConfig{
		Brokers:           broker.Brokers,
		Topic:             "membership.events.it",
		ClientID:          "orgapi-it",
		Partitions:        1,
		ReplicationFactor: 1,
	}

	client, err := platformkafka.NewClient(s.cfg)
	s.Require().NoError(err)
	s.producer = client

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(platformkafka.EnsureTopic(ctx, client, s.cfg))
}

func (s *KafkaNotifierSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *KafkaNotifierSuite) TestEnsureTopicIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(platformkafka.EnsureTopic(ctx, s.producer, s.cfg))
}

func (s *KafkaNotifierSuite) TestRejectedEventRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := notify.NewKafkaNotifier(s.producer, s.cfg.Topic)
	s.Require().NoError(err)

	now := time.Now().UTC().Truncate(time.Second)
	applicant := models.NewApplication(models.PersonalData{
		FirstName:  "Kari",
		LastName:   "Nordmann",
		PersonalNr: "12345678901",
		Email:      "kari@example.no",
	}, "REF-1", 300, now)
	applicant.ID = id.NewApplicantID()
	applicant.ApplyReject(now, 30*24*time.Hour)

	err = n.Send(ctx, applicant.Email, models.EventRejected, applicant, map[string]string{
		notify.ExtraReason:    "incomplete",
		notify.ExtraRequestID: "req-it-1",
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var found *kgo.Record
	for found == nil {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for record")
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == applicant.ID.String() {
				found = r
			}
		})
	}

	var body map[string]any
	s.Require().NoError(json.Unmarshal(found.Value, &body))
	s.Equal("rejected", body["kind"])
	s.Equal("incomplete", body["reason"])
	s.Equal("req-it-1", body["request_id"])
	s.Equal("REJECTED", body["status"])
	s.NotEmpty(body["delete_at"])
	s.Require().Len(found.Headers, 1)
	s.Equal("event_kind", found.Headers[0].Key)
	s.Equal("rejected", string(found.Headers[0].Value))
}
