package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
)

// EventAnalysisCompleted is the type of the event published after a run.
const EventAnalysisCompleted = "AnalysisCompleted"

// messagePublisher is satisfied by *kafka.Producer.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// AnalysisEvent is the Kafka payload, keyed by symbol.
type AnalysisEvent struct {
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Summary    models.AnalysisSummary `json:"summary"`
}

// KafkaEventPublisher announces completed runs on a topic.
type KafkaEventPublisher struct {
	producer messagePublisher
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer messagePublisher, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishAnalysis(ctx context.Context, s models.AnalysisSummary) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), AnalysisEvent{
		Type:       EventAnalysisCompleted,
		OccurredAt: time.Now().UTC(),
		Summary:    s,
	})
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
