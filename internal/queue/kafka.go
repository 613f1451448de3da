package queue

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

var _ RevisionQueue = (*KafkaQueue)(nil)

// KafkaQueue produces revision events keyed by template id, so the events of
// one template stay ordered within a partition.
type KafkaQueue struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaQueue(brokers, topic string) (*KafkaQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	if topic == "" {
		topic = DefaultRevisionTopic
	}

	return &KafkaQueue{producer: producer, topic: topic}, nil
}

func (k *KafkaQueue) Publish(ctx context.Context, event RevisionEvent) error {
	data, err := event.MarshalBinary()
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.TemplateID),
		Value:          data,
		Headers:        []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka event: %v", e)
		}
		if msg.TopicPartition.Error != nil {
			return msg.TopicPartition.Error
		}
		logrus.Debugf("published %s for revision %s at offset %v", event.Type, event.RevisionID, msg.TopicPartition.Offset)
		return nil
	}
}

func (k *KafkaQueue) Close() error {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logrus.Warnf("kafka producer closed with %d undelivered events", remaining)
	}
	k.producer.Close()

	return nil
}
