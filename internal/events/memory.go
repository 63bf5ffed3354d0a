package events

import (
	"context"
	"sync"
)

type Message struct {
	Subject string
	Data    []byte
}

// MemoryPublisher records every published message. Fail, when set, is
// consulted before each publish and its error returned instead.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	closed   bool

	Fail func(subject string) error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.Fail != nil {
		if err := p.Fail(subject); err != nil {
			return err
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p.messages = append(p.messages, Message{Subject: subject, Data: cp})
	return nil
}

// Messages returns a copy of what has been published so far.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
