package kafka

import (
	"context"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
)

// RecordSubmittedPayload is the payload of record.submitted.
type RecordSubmittedPayload struct {
	Record *testrecord.TestRecord `json:"record"`
}

// RecordUpdatedPayload is the payload of record.updated. Current is sent
// without its history; Archived is the version it replaced.
type RecordUpdatedPayload struct {
	Current  *testrecord.TestRecord `json:"current"`
	Archived *testrecord.TestRecord `json:"archived"`
}

type messagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// RecordEventPublisher announces record lifecycle changes. Messages are
// keyed by system number so that events of one vehicle stay ordered.
type RecordEventPublisher struct {
	producer messagePublisher
	source   string
	now      func() time.Time
	logger   logging.Logger
}

var _ testrecord.EventPublisher = (*RecordEventPublisher)(nil)

// NewRecordEventPublisher publishes through producer, stamping source on
// every envelope.
func NewRecordEventPublisher(producer *Producer, source string, logger logging.Logger) *RecordEventPublisher {
	return newRecordEventPublisher(producer, source, time.Now, logger)
}

func newRecordEventPublisher(p messagePublisher, source string, now func() time.Time, logger logging.Logger) *RecordEventPublisher {
	return &RecordEventPublisher{producer: p, source: source, now: now, logger: logger}
}

func (p *RecordEventPublisher) PublishRecordSubmitted(ctx context.Context, r *testrecord.TestRecord) error {
	return p.publish(ctx, TopicRecordSubmitted, EventRecordSubmitted, r, RecordSubmittedPayload{Record: r})
}

func (p *RecordEventPublisher) PublishRecordUpdated(ctx context.Context, current, archived *testrecord.TestRecord) error {
	slim := current.Clone()
	slim.TestHistory = nil
	return p.publish(ctx, TopicRecordUpdated, EventRecordUpdated, current, RecordUpdatedPayload{Current: slim, Archived: archived})
}

func (p *RecordEventPublisher) publish(ctx context.Context, topic, eventType string, r *testrecord.TestRecord, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, p.source, p.now(), payload)
	if err != nil {
		return err
	}
	env.Metadata = map[string]string{
		"system_number":  r.SystemNumber,
		"test_result_id": r.TestResultID,
	}
	msg, err := env.ToMessage(topic, r.SystemNumber)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("event published",
		logging.String("event_type", eventType),
		logging.String("event_id", env.EventID),
		logging.String("test_result_id", r.TestResultID))
	return nil
}
