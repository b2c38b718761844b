// Package events is a small publish/subscribe primitive.
//
// An Event[T] is one channel with any number of subscribers. Emit takes a
// snapshot of the subscriber list, runs every subscriber concurrently and
// returns once all of them have returned. A failing or panicking subscriber
// is logged and does not affect its siblings or the emitter. Emissions on the
// same Event are serialized; different Events are independent.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/oscquery/internal/logging"
)

// Handler receives one emission.
type Handler[T any] func(ctx context.Context, event T) error

// FailureHook is told about every subscriber failure, after it was logged.
type FailureHook func(event string, err error)

type subscriber[T any] struct {
	id      uint64
	handler Handler[T]
}

// Event is a single notification channel.
type Event[T any] struct {
	name      string
	onFailure FailureHook
	log       *zap.Logger

	mu     sync.Mutex
	subs   []subscriber[T]
	nextID uint64

	// emitMu keeps at most one emission in flight
	emitMu sync.Mutex
}

// New creates an event named name. The name only appears in logs and in
// the failure hook. Failures are logged to log, or to the package logger
// when log is nil.
func New[T any](name string, onFailure FailureHook, log *zap.Logger) *Event[T] {
	return &Event[T]{name: name, onFailure: onFailure, log: logging.OrGlobal(log, "events")}
}

// Name returns the event name.
func (e *Event[T]) Name() string {
	return e.name
}

// Subscribe registers h and returns a function that removes it again.
// Subscribers added during an emission take part from the next one on.
func (e *Event[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber[T]{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == id {
			// copy so snapshots taken by in-flight emissions stay intact
			subs := make([]subscriber[T], 0, len(e.subs)-1)
			subs = append(subs, e.subs[:i]...)
			e.subs = append(subs, e.subs[i+1:]...)
			return
		}
	}
}

// Len returns the current number of subscribers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Event[T]) snapshot() []subscriber[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs
}

// Emit delivers event to every current subscriber and waits for all of them.
func (e *Event[T]) Emit(ctx context.Context, event T) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	subs := e.snapshot()
	if len(subs) == 0 {
		return
	}

	errs := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, s := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = invoke(ctx, s.handler, event)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		e.log.Error("Event subscriber failed",
			zap.String("event", e.name),
			zap.Error(err),
		)
		if e.onFailure != nil {
			e.onFailure(e.name, err)
		}
	}
}

func invoke[T any](ctx context.Context, h Handler[T], event T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return h(ctx, event)
}
