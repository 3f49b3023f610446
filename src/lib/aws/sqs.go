package aws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSPublisher sends events to the queue named by the topic.
type SQSPublisher struct {
	client *sqs.Client
	mu     sync.Mutex
	urls   map[string]string
}

func NewSQSPublisher(cfg aws.Config) *SQSPublisher {
	return &SQSPublisher{client: sqs.NewFromConfig(cfg), urls: map[string]string{}}
}

func (s *SQSPublisher) queueURL(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url, ok := s.urls[name]; ok {
		return url, nil
	}
	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		log.Printf("Failed to retrieve queue URL for %s: %s\n", name, err.Error())
		return "", err
	}
	s.urls[name] = aws.ToString(out.QueueUrl)
	return s.urls[name], nil
}

func (s *SQSPublisher) Publish(ctx context.Context, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url, err := s.queueURL(ctx, topic)
	if err != nil {
		return err
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	}
	if t, ok := payload["type"].(string); ok {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(t)},
		}
	}
	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		log.Printf("[SQS] Error sending message to %s: %s\n", topic, err.Error())
		return err
	}
	log.Printf("[SQS] sent message %s to %s\n", aws.ToString(out.MessageId), topic)
	return nil
}
