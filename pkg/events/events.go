package events

import (
	"context"
	"errors"
	"time"

	"github.com/stream-queue-system/pkg/models"
)

type EventType string

const (
	EventTypeStreamAdded     EventType = "stream_added"
	EventTypeStreamUpvoted   EventType = "stream_upvoted"
	EventTypeStreamDownvoted EventType = "stream_downvoted"
	EventTypeStreamStarted   EventType = "stream_started"
	EventTypeQueueDrained    EventType = "queue_drained"
)

// Event describes a change to one creator's queue. Item is set for added
// and started events; Upvotes carries the new total for vote events.
type Event struct {
	Type      EventType         `json:"type"`
	CreatorID string            `json:"creator_id"`
	StreamID  string            `json:"stream_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Upvotes   int               `json:"upvotes"`
	Stream    *models.QueueItem `json:"stream,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Fanout delivers every event to all publishers and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }
