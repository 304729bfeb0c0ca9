// Package audit mirrors debate state to an out-of-band Kafka topic set,
// adapted from the teacher's single-purpose kafka producer into a
// best-effort sink: failures are logged and swallowed, never returned.
// Each publish is a synchronous send, so the caller waits until the
// broker acknowledges (or the producer gives up on) the message.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/punkouter25/podebaterap/internal/domain"
)

const (
	// TopicSnapshots carries every snapshot an orchestrator publishes.
	TopicSnapshots = "debate.snapshots"
	// TopicOutcomes carries only the snapshot published alongside a
	// successful PersonaStore.RecordOutcome write.
	TopicOutcomes = "debate.outcomes"
)

// event is the wire shape mirrored onto both topics.
type event struct {
	SessionID string          `json:"sessionId"`
	Snapshot  domain.Snapshot `json:"snapshot"`
}

// KafkaPublisher mirrors session snapshots to Kafka via a synchronous
// producer, the same reliability settings (RequiredAcks=all, Retry.Max=5)
// the teacher's producer used for its own topics.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

// NewKafkaPublisher dials brokers and returns a ready Publisher.
func NewKafkaPublisher(brokers []string, logger *zap.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: creating kafka producer: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, logger: logger}, nil
}

// PublishSnapshot mirrors snap to TopicSnapshots. Failures are logged
// and swallowed — the debate itself never depends on this succeeding.
func (p *KafkaPublisher) PublishSnapshot(sessionID string, snap domain.Snapshot) {
	p.send(TopicSnapshots, sessionID, snap)
}

// PublishOutcome mirrors snap to TopicOutcomes.
func (p *KafkaPublisher) PublishOutcome(sessionID string, snap domain.Snapshot) {
	p.send(TopicOutcomes, sessionID, snap)
}

func (p *KafkaPublisher) send(topic, sessionID string, snap domain.Snapshot) {
	logger := p.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	payload, err := json.Marshal(event{SessionID: sessionID, Snapshot: snap})
	if err != nil {
		logger.Warn("audit: marshaling snapshot failed", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(sessionID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		logger.Warn("audit: publishing to kafka failed", zap.Error(err), zap.String("topic", topic), zap.String("sessionId", sessionID))
	}
}

// Close releases the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher discards everything. Used when no broker is configured
// so the orchestrator's Audit dependency is never nil in practice.
type NoopPublisher struct{}

func (NoopPublisher) PublishSnapshot(sessionID string, snap domain.Snapshot) {}
func (NoopPublisher) PublishOutcome(sessionID string, snap domain.Snapshot) {}
