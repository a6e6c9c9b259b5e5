// Package anim decouples inbound message dispatch from the multi-second
// celebration sequence. Producers push decoded sale events into a small
// bounded queue and return immediately; a single worker drains it and plays
// the fixed three-phase animation, one event at a time.
package anim

import (
	"errors"

	"github.com/moneybot/moneybotd/internal/model"
)

// DefaultCapacity matches the animation's own duration against the decoder's
// debounce rate; overflow means the display is already saturated.
const DefaultCapacity = 5

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("animation queue full")

// Queue is a bounded FIFO of sale events.
type Queue struct {
	ch chan model.SaleEvent
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan model.SaleEvent, capacity)}
}

// TryEnqueue never blocks; a full queue drops the event.
func (q *Queue) TryEnqueue(ev model.SaleEvent) error {
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an event is available or the queue is closed.
func (q *Queue) Dequeue() (model.SaleEvent, bool) {
	ev, ok := <-q.ch
	return ev, ok
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close releases the worker; pending events are still drained first.
func (q *Queue) Close() {
	close(q.ch)
}
