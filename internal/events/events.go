// Package events announces task changes to interested subscribers.
//
// The task service hands each change to a Dispatcher, which queues it and
// publishes it in the background, so a slow or unavailable broker never
// delays or fails an HTTP request. NATS is the production backend; the
// memory and no-op publishers exist for tests and for running without a
// broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"solstice/internal/model"
)

var ErrClosed = errors.New("publisher closed")

type Type string

const (
	TaskCreated Type = "created"
	TaskUpdated Type = "updated"
	TaskDeleted Type = "deleted"
)

type Event struct {
	Type   Type        `json:"type"`
	TaskID uuid.UUID   `json:"task_id"`
	Task   *model.Task `json:"task,omitempty"`
	At     time.Time   `json:"at"`
}

// Subject returns the subject ev is published on, e.g. "solstice.tasks.created".
func (ev Event) Subject(prefix string) string {
	if prefix == "" {
		return string(ev.Type)
	}
	return prefix + "." + string(ev.Type)
}

func (ev Event) Marshal() ([]byte, error) {
	return json.Marshal(ev)
}

type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
