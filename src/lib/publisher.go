package lib

import (
	"context"
	"encoding/json"
	"log"
)

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload map[string]any) error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	log.Printf("[Events] %s: %s\n", topic, body)
	return nil
}
