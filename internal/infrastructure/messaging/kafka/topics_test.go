package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/testutil"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	created    []kafka.TopicConfig
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	m.created = append(m.created, topics...)
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func newTestTopicManager(conn ConnInterface) *TopicManager {
	return &TopicManager{conn: conn, logger: testutil.NewMockLogger()}
}

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics(0)
	require.Len(t, topics, 3)
	for _, tc := range topics {
		assert.Equal(t, 1, tc.ReplicationFactor)
	}
	assert.Equal(t, TopicRecordSubmitted, topics[0].Name)
	assert.Equal(t, int64(7*24*3600*1000), topics[0].RetentionMs)
	assert.Equal(t, 3, DefaultTopics(3)[1].ReplicationFactor)
}

func TestCreateTopic_Validation(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{})
	ctx := context.Background()

	assert.Error(t, m.CreateTopic(ctx, TopicConfig{}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "x", ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "x", NumPartitions: 1}))
}

func TestCreateTopic_ConfigEntries(t *testing.T) {
	conn := &mockKafkaConn{}
	m := newTestTopicManager(conn)

	require.NoError(t, m.CreateTopic(context.Background(), TopicConfig{
		Name: "x", NumPartitions: 2, ReplicationFactor: 1, RetentionMs: 1000, CleanupPolicy: "compact",
	}))
	require.Len(t, conn.created, 1)
	assert.Equal(t, []kafka.ConfigEntry{
		{ConfigName: "retention.ms", ConfigValue: "1000"},
		{ConfigName: "cleanup.policy", ConfigValue: "compact"},
	}, conn.created[0].ConfigEntries)
}

func TestCreateTopic_ExistingIsNotAnError(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{
		createFunc: func(...kafka.TopicConfig) error { return kafka.TopicAlreadyExists },
	})
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))

	m = newTestTopicManager(&mockKafkaConn{
		createFunc: func(...kafka.TopicConfig) error { return errors.New("race") },
		readFunc: func(...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: "x"}}, nil
		},
	})
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))
}

func TestEnsureDefaultTopics_StopsOnFailure(t *testing.T) {
	conn := &mockKafkaConn{createFunc: func(...kafka.TopicConfig) error { return errors.New("unauthorized") }}
	m := newTestTopicManager(conn)

	assert.Error(t, m.EnsureDefaultTopics(context.Background(), 1))
	assert.Len(t, conn.created, 1)
}

func TestEnvelope_MessageRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 12, 9, 0, 0, 0, time.FixedZone("BST", 3600))
	env, err := NewEventEnvelope(EventRecordSubmitted, "vtr-api", now, map[string]string{"systemNumber": "11000001"})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	msg, err := env.ToMessage(TopicRecordSubmitted, "11000001")
	require.NoError(t, err)
	assert.Equal(t, env.EventID, msg.Headers["event_id"])
	assert.Equal(t, "vtr-api", msg.Headers["source_service"])

	decoded, err := DecodeEnvelope(msg.Value)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "11000001", payload["systemNumber"])

	_, err = DecodeEnvelope(nil)
	assert.Error(t, err)
}
