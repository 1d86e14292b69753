// internal/queue/kafka.go
package queue

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkgerrors "github.com/paystream/paystream/pkg/errors"
)

// KafkaProducer publishes processing jobs to a Kafka topic. Messages are
// keyed by transaction ID so redeliveries for the same transaction land
// on the same partition.
type KafkaProducer struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaProducer creates a Kafka-backed job producer
func NewKafkaProducer(brokers, topic string) (*KafkaProducer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, pkgerrors.QueueWrap(err, "NewKafkaProducer", pkgerrors.QueueErrConnection)
	}

	return &KafkaProducer{
		producer: producer,
		topic:    topic,
	}, nil
}

// Enqueue publishes a processing job for the given transaction ID
func (p *KafkaProducer) Enqueue(ctx context.Context, transactionID string) error {
	job := NewJob(transactionID)
	payload, err := job.ToJSON()
	if err != nil {
		return pkgerrors.QueueWrap(err, "Enqueue", pkgerrors.QueueErrPublish)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(transactionID),
		Value: payload,
	}, nil)
	if err != nil {
		return pkgerrors.QueueWrap(err, "Enqueue", pkgerrors.QueueErrPublish)
	}

	return nil
}

// Ping verifies broker connectivity by requesting metadata for the
// job topic.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	_, err := p.producer.GetMetadata(&p.topic, false, 5000)
	return err
}

// Close flushes outstanding messages and closes the producer
func (p *KafkaProducer) Close() error {
	p.producer.Flush(15 * 1000) // 15 seconds timeout
	p.producer.Close()
	return nil
}

// KafkaConsumer consumes processing jobs from a Kafka topic as part of a
// consumer group. Offsets are committed only after a job is acked, which
// gives at-least-once delivery across worker restarts.
type KafkaConsumer struct {
	consumer *kafka.Consumer
}

// NewKafkaConsumer creates a Kafka-backed job consumer subscribed to the
// given topic.
func NewKafkaConsumer(brokers, topic, group string) (*KafkaConsumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           group,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, pkgerrors.QueueWrap(err, "NewKafkaConsumer", pkgerrors.QueueErrConnection)
	}

	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		consumer.Close()
		return nil, pkgerrors.QueueWrap(err, "NewKafkaConsumer", pkgerrors.QueueErrConnection)
	}

	return &KafkaConsumer{consumer: consumer}, nil
}

// Next blocks until a job is available or the context is cancelled
func (c *KafkaConsumer) Next(ctx context.Context) (*Job, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			return nil, pkgerrors.QueueWrap(err, "Next", pkgerrors.QueueErrConsume)
		}

		job, err := JobFromJSON(msg.Value)
		if err != nil {
			// A malformed message can never become a valid job; commit it
			// so it is not redelivered forever.
			c.consumer.CommitMessage(msg)
			return nil, pkgerrors.QueueWrap(err, "Next", pkgerrors.QueueErrConsume)
		}

		committed := msg
		job.WithAck(func() error {
			_, err := c.consumer.CommitMessage(committed)
			return err
		})

		return job, nil
	}
}

// Close closes the consumer
func (c *KafkaConsumer) Close() error {
	return c.consumer.Close()
}
