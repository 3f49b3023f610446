package lib

import (
	"context"
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func GetKafkaProducerConfig(broker, clientID string) kafka.ConfigMap {
	return kafka.ConfigMap{
		"bootstrap.servers": broker,
		"client.id":         clientID,
		"acks":              "all",
	}
}

type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(broker, clientID string) (*KafkaPublisher, error) {
	cfg := GetKafkaProducerConfig(broker, clientID)
	p, err := kafka.NewProducer(&cfg)
	if err != nil {
		log.Printf("Error on producer: %s\n", err.Error())
		return nil, err
	}
	return &KafkaPublisher{producer: p}, nil
}

// Publish produces one JSON message and waits for the broker acknowledgement.
func (k *KafkaPublisher) Publish(ctx context.Context, topic string, payload map[string]any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, delivery)
	if err != nil {
		log.Printf("[Kafka] produce to %s failed: %s\n", topic, err.Error())
		return err
	}
	select {
	case ev := <-delivery:
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return m.TopicPartition.Error
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaPublisher) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}

func KafkaCreateTopics(ctx context.Context, broker string, topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		log.Printf("Error on AdminClient: %s\n", err.Error())
		return nil, err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     10,
			ReplicationFactor: 1,
		})
	}
	result, err := a.CreateTopics(ctx, topicsDef)
	if err != nil {
		log.Printf("Error creating topics: %s\n", err.Error())
		return nil, err
	}
	return result, nil
}
