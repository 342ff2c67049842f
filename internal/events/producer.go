package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	TopicPaymentStatusChanged = "payment.status.changed"
	TopicESIMProvisioned      = "esim.provisioned"
)

type PaymentStatusChanged struct {
	EventType      string    `json:"event_type"`
	TransactionID  string    `json:"transaction_id"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type ESIMProvisioned struct {
	EventType      string    `json:"event_type"`
	TransactionID  string    `json:"transaction_id"`
	ProvisioningID string    `json:"provisioning_id"`
	EsimPlanID     string    `json:"esim_plan_id"`
	ICCID          string    `json:"iccid"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher emits domain events. Delivery is best-effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer builds a sync producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaPublisher(producer sarama.SyncProducer) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s event: %w", topic, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// logPublisher writes events to the log. Used when no brokers are configured.
type logPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) Publisher {
	return &logPublisher{log: log}
}

func (p *logPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.log.WithFields(logrus.Fields{"topic": topic, "key": key, "event": event}).Info("event published")
	return nil
}

func (p *logPublisher) Close() error { return nil }
