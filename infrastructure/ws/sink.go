package ws

import (
	"context"
	"fmt"
	"sync"

	"chat-relay/domain/event"
)

var (
	errSinkClosed = fmt.Errorf("session sink closed")
	errSinkFull   = fmt.Errorf("session sink buffer full")
)

// Sink is the connection-side end of one session. The core pushes domain
// events into the buffered channel; the session's write pump drains it onto
// the wire. A full channel means the client cannot keep up, in which case
// Consume fails instead of stalling the caller, so the push is never counted
// as a delivery.
type Sink struct {
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewSink(bufferSize int) *Sink {
	return &Sink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume hands an event to the session. It never blocks: after Close or on
// a full buffer it fails, so the core never counts a delivery against a dead
// or saturated connection.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errSinkClosed
	default:
		return errSinkFull
	}
}

// Close marks the sink dead. Idempotent.
func (s *Sink) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Events exposes the drain side to the write pump.
func (s *Sink) Events() <-chan event.DomainEvent { return s.events }

// Done is closed once the sink is closed.
func (s *Sink) Done() <-chan struct{} { return s.done }
