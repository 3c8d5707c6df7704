package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"solguardian/types"
)

// EventType labels the events published to the analysis stream.
type EventType string

const (
	AnalysisCompletedEvent EventType = "analysis_completed"
	KnowledgeSeededEvent   EventType = "knowledge_seeded"
)

// Event is one message on the analysis stream.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}

// Producer publishes analysis events to Kafka. A nil Producer is a valid
// no-op, so callers never branch on whether events are enabled.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: time.Second,
			Async:        true,
		},
	}
}

// PublishAnalysisCompleted emits the rollup of one finished analysis.
// Publish failures are logged and dropped; the event stream is advisory.
func (p *Producer) PublishAnalysisCompleted(ctx context.Context, report *types.AnalysisReport) {
	if p == nil {
		return
	}
	p.publish(ctx, Event{
		Type:      AnalysisCompletedEvent,
		Timestamp: time.Now().UTC(),
		Source:    "solguardian",
		Data: map[string]interface{}{
			"request_id": report.RequestID,
			"file":       report.Contract.FileName,
			"risk_level": report.Risk.Level,
			"risk_score": report.Risk.Score,
			"indicators": len(report.Contract.Indicators),
		},
	}, report.RequestID)
}

// PublishKnowledgeSeeded emits a seeding summary.
func (p *Producer) PublishKnowledgeSeeded(ctx context.Context, collection types.Collection, count int) {
	if p == nil {
		return
	}
	p.publish(ctx, Event{
		Type:      KnowledgeSeededEvent,
		Timestamp: time.Now().UTC(),
		Source:    "solguardian",
		Data: map[string]interface{}{
			"collection": collection,
			"count":      count,
		},
	}, string(collection))
}

func (p *Producer) publish(ctx context.Context, evt Event, key string) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("⚠️  Failed to marshal event %s: %v", evt.Type, err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		log.Printf("⚠️  Failed to publish event %s: %v", evt.Type, err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
