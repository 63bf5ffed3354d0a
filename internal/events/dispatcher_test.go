package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"solstice/internal/backoff"
	"solstice/internal/model"
)

func fastConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.Backoff = backoff.Config{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestDispatcher_PublishesEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	d := NewDispatcher(pub, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	task := model.Task{ID: uuid.New(), Title: "buy milk", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	d.Emit(Event{Type: TaskCreated, TaskID: task.ID, Task: &task, At: task.CreatedAt})

	waitFor(t, func() bool { return len(pub.Messages()) == 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	msg := pub.Messages()[0]
	if msg.Subject != "solstice.tasks.created" {
		t.Fatalf("subject=%s", msg.Subject)
	}
	var got Event
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TaskID != task.ID || got.Task == nil || got.Task.Title != "buy milk" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestDispatcher_RetriesFailedPublish(t *testing.T) {
	pub := NewMemoryPublisher()
	var calls atomic.Int32
	pub.Fail = func(string) error {
		if calls.Add(1) < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}
	d := NewDispatcher(pub, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Emit(Event{Type: TaskDeleted, TaskID: uuid.New(), At: time.Now().UTC()})

	waitFor(t, func() bool { return len(pub.Messages()) == 1 })
	if d.Failed() != 0 {
		t.Fatalf("failed=%d", d.Failed())
	}
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	pub := NewMemoryPublisher()
	pub.Fail = func(string) error { return errors.New("broker unavailable") }
	d := NewDispatcher(pub, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Emit(Event{Type: TaskUpdated, TaskID: uuid.New(), At: time.Now().UTC()})

	waitFor(t, func() bool { return d.Failed() == 1 })
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	cfg := fastConfig()
	cfg.BufferSize = 1
	d := NewDispatcher(NewMemoryPublisher(), cfg, nil)

	// not running: the second event has nowhere to go
	d.Emit(Event{Type: TaskCreated, TaskID: uuid.New()})
	d.Emit(Event{Type: TaskCreated, TaskID: uuid.New()})

	if d.Dropped() != 1 {
		t.Fatalf("dropped=%d", d.Dropped())
	}
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	pub := NewMemoryPublisher()
	d := NewDispatcher(pub, fastConfig(), nil)

	for i := 0; i < 3; i++ {
		d.Emit(Event{Type: TaskCreated, TaskID: uuid.New()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(pub.Messages()); n != 3 {
		t.Fatalf("published=%d", n)
	}
}

func TestEvent_Subject(t *testing.T) {
	ev := Event{Type: TaskUpdated}
	if got := ev.Subject("app.tasks"); got != "app.tasks.updated" {
		t.Fatalf("subject=%s", got)
	}
	if got := ev.Subject(""); got != "updated" {
		t.Fatalf("subject=%s", got)
	}
}
