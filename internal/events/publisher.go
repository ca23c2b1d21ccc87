// Package events publishes user domain events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/userd/userd/internal/metrics"
	"github.com/userd/userd/internal/model"
)

const (
	// StreamKey is the Redis stream for user events.
	StreamKey = "stream:user_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond

	// TypeUserCreated is emitted after a user is stored.
	TypeUserCreated = "user.created"
)

// Event is the payload written to the stream.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	OccurredAt int64  `json:"t"` // Unix milliseconds

	// StoreEpoch is set when UserID is only unique within one run of a
	// non-durable store.
	StoreEpoch string `json:"store_epoch,omitempty"`
}

// NewUserCreated builds a user.created event with a fresh ULID.
func NewUserCreated(user *model.User) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       TypeUserCreated,
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		OccurredAt: user.CreatedAt.UnixMilli(),
	}
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(event Event)
}

// Noop discards events.
type Noop struct{}

// Emit is a no-op.
func (Noop) Emit(Event) {}

// Publisher enqueues events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	inflight sync.WaitGroup
}

var _ Emitter = (*Publisher)(nil)

// NewPublisher creates a new event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	values, err := encode(event)
	if err != nil {
		return "", err
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// Emit publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) Emit(event Event) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish user event",
				"event_id", event.ID,
				"type", event.Type,
				"error", err,
			)
			p.metrics.IncEventPublished("dropped")
			return
		}

		p.logger.Debug("user event published",
			"event_id", event.ID,
			"type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncEventPublished("success")
	}()
}

// Drain waits for in-flight Emit calls to finish or for ctx to expire.
func (p *Publisher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(event Event) (map[string]any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]any{
		"type":    event.Type,
		"payload": string(data),
	}, nil
}

// Decode parses a stream message back into an Event.
func Decode(values map[string]any) (Event, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing payload")
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
