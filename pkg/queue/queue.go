package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job consumes one message type off the queue.
type Job interface {
	// Name identifies the job in logs.
	Name() string
	// Type is the message type this job subscribes to.
	Type() string
	// Handle processes one payload. Returning an error schedules a retry.
	Handle(ctx context.Context, payload interface{}) error
}

// QueueService is the producer-side contract.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig tunes the worker side.
type QueueConfig struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope stored in Redis. Payloads are carried as raw JSON
// so they survive the round trip without losing shape.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ParsePayload recovers a typed payload inside a Job. Raw JSON is decoded
// directly; any other value is round-tripped through JSON so map-shaped
// payloads from older producers still parse.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return decodePayload[T](p)
	case []byte:
		return decodePayload[T](p)
	case nil:
		return nil, fmt.Errorf("queue: nil payload")
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: re-encode %T payload: %w", payload, err)
	}
	return decodePayload[T](b)
}

func decodePayload[T any](b []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("queue: decode payload: %w", err)
	}
	return &v, nil
}
