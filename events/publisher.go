package events

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"newscast/types"
)

// Event is one pipeline state transition, published as JSON.
type Event struct {
	RunID     string               `json:"run_id"`
	State     types.PipelineState  `json:"state"`
	Message   string               `json:"message,omitempty"`
	Stats     types.DiscoveryStats `json:"stats"`
	Timestamp time.Time            `json:"timestamp"`
}

// Publisher delivers pipeline events to interested consumers.
type Publisher interface {
	Publish(event Event) error
	Close() error
}

// KafkaPublisher sends events to one Kafka topic, keyed by run ID so a run's
// transitions stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to the given brokers.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RunID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher writes events to the process log. Used when Kafka is not
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(event Event) error {
	log.Printf("📣 run %s: %s %s", event.RunID, event.State, event.Message)
	return nil
}

func (LogPublisher) Close() error { return nil }
