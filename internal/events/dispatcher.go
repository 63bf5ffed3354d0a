package events

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"solstice/internal/backoff"
	"solstice/internal/observability/jsonlog"
)

type DispatcherConfig struct {
	SubjectPrefix string
	BufferSize    int           // queued events before Emit starts dropping
	MaxAttempts   int           // publish attempts per event
	Backoff       backoff.Config
	DrainTimeout  time.Duration // how long Run keeps publishing after ctx is done
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		SubjectPrefix: "solstice.tasks",
		BufferSize:    256,
		MaxAttempts:   3,
		Backoff:       backoff.Default(),
		DrainTimeout:  2 * time.Second,
	}
}

type Dispatcher struct {
	pub     Publisher
	cfg     DispatcherConfig
	queue   chan Event
	logger  *jsonlog.Logger
	rng     *rand.Rand
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewDispatcher(pub Publisher, cfg DispatcherConfig, logger *jsonlog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if pub == nil {
		pub = NoopPublisher{}
	}
	if logger == nil {
		logger = jsonlog.Discard()
	}
	return &Dispatcher{
		pub:    pub,
		cfg:    cfg,
		queue:  make(chan Event, cfg.BufferSize),
		logger: logger.With(map[string]any{"component": "events"}),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Emit queues ev without blocking. When the queue is full the event is dropped.
func (d *Dispatcher) Emit(ev Event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event", map[string]any{
			"type":    string(ev.Type),
			"task_id": ev.TaskID.String(),
		})
	}
}

// Dropped counts events discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed counts events that exhausted their publish attempts.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Run publishes queued events until ctx is canceled, then drains what is
// left for at most DrainTimeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started", map[string]any{
		"buffer":       d.cfg.BufferSize,
		"max_attempts": d.cfg.MaxAttempts,
	})

	for {
		select {
		case <-ctx.Done():
			d.drain(nil)
			d.logger.Info("dispatcher stopped", nil)
			return nil
		case ev := <-d.queue:
			if ctx.Err() != nil {
				d.drain(&ev)
				d.logger.Info("dispatcher stopped", nil)
				return nil
			}
			d.publish(ctx, ev)
		}
	}
}

// drain publishes first, if any, and then whatever is still queued.
func (d *Dispatcher) drain(first *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()
	if first != nil {
		d.publish(ctx, *first)
	}
	for {
		select {
		case ev := <-d.queue:
			d.publish(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev Event) {
	data, err := ev.Marshal()
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("encode event", map[string]any{"type": string(ev.Type), "error": err})
		return
	}
	subject := ev.Subject(d.cfg.SubjectPrefix)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err = d.pub.Publish(ctx, subject, data)
		if err == nil {
			d.logger.Debug("event published", map[string]any{"subject": subject, "task_id": ev.TaskID.String()})
			return
		}
		if attempt == d.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if backoff.Sleep(ctx, backoff.Delay(attempt, d.cfg.Backoff, d.rng)) != nil {
			break
		}
	}

	d.failed.Add(1)
	d.logger.Error("publish event", map[string]any{
		"subject": subject,
		"task_id": ev.TaskID.String(),
		"error":   err,
	})
}
