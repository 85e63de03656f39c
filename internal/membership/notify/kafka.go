package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"orgapi/internal/membership/models"
)

// Producer is the part of kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaNotifier publishes lifecycle notifications as JSON records keyed by
// applicant id, so every event for one applicant lands on one partition.
type KafkaNotifier struct {
	producer Producer
	topic    string
	clock    func() time.Time
}

type kafkaMessage struct {
	Kind        string    `json:"kind"`
	To          string    `json:"to"`
	ApplicantID string    `json:"applicant_id"`
	Status      string    `json:"status"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Reason      string    `json:"reason,omitempty"`
	DeleteAt    *string   `json:"delete_at,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func NewKafkaNotifier(producer Producer, topic string) (*KafkaNotifier, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &KafkaNotifier{producer: producer, topic: topic, clock: time.Now}, nil
}

func (n *KafkaNotifier) Send(ctx context.Context, to string, kind models.EventKind, applicant *models.Applicant, extra map[string]string) error {
	msg := kafkaMessage{
		Kind:        string(kind),
		To:          to,
		ApplicantID: applicant.ID.String(),
		Status:      string(applicant.Status),
		FirstName:   applicant.FirstName,
		LastName:    applicant.LastName,
		Reason:      extra[ExtraReason],
		RequestID:   extra[ExtraRequestID],
		PublishedAt: n.clock().UTC(),
	}
	if applicant.DeleteAt != nil {
		deleteAt := applicant.DeleteAt.UTC().Format(time.RFC3339)
		msg.DeleteAt = &deleteAt
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal kafka notification: %w", err)
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(applicant.ID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_kind", Value: []byte(kind)},
		},
	}
	if err := n.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s notification: %w", kind, err)
	}
	return nil
}
