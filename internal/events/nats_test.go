package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

func TestNewNATSPublisher_Unreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.ConnectTimeout = 200 * time.Millisecond

	if _, err := NewNATSPublisher(cfg); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set (integration test)")
	}

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("solstice-test.tasks.>", msgs)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Unsubscribe()
	if err := sub.Flush(); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultNATSConfig()
	cfg.URL = url
	pub, err := NewNATSPublisher(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ev := Event{Type: TaskDeleted, TaskID: uuid.New(), At: time.Now().UTC()}
	data, err := ev.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish(context.Background(), ev.Subject("solstice-test.tasks"), data); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case m := <-msgs:
		if m.Subject != "solstice-test.tasks.deleted" || string(m.Data) != string(data) {
			t.Fatalf("got subject=%s data=%s", m.Subject, m.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitFor(t, func() bool { return pub.conn.IsClosed() })
	if err := pub.Publish(context.Background(), "x", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close err=%v", err)
	}
}
