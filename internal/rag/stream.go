// Package rag orchestrates retrieval augmented answering: embed the question,
// query the vector index, assemble context, and stream the completion.
package rag

import (
	"context"
	"sync"

	"github.com/pustakalab/pustaka/internal/models"
)

// EventStream is a pull-based iterator over chat events. The producer runs in
// its own goroutine and blocks until the consumer calls Next, so abandoning
// the stream without Close would leak it. Close releases the producer and
// cancels any in-flight provider request.
type EventStream struct {
	ch     chan models.StreamEvent
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

func newEventStream(cancel context.CancelFunc) *EventStream {
	return &EventStream{
		ch:     make(chan models.StreamEvent),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Next blocks until the next event is available. ok is false once the stream
// is exhausted or closed.
func (s *EventStream) Next() (models.StreamEvent, bool) {
	ev, ok := <-s.ch
	return ev, ok
}

// Close stops the producer. Safe to call multiple times and after exhaustion.
func (s *EventStream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// send delivers ev to the consumer. Returns false when the stream was closed,
// which tells the producer to stop.
func (s *EventStream) send(ev models.StreamEvent) bool {
	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	}
}

// finish signals exhaustion to the consumer.
func (s *EventStream) finish() {
	close(s.ch)
}
