// Package tasks runs package-manager actions in the background and fans
// their completion events out to subscribers.
//
// Actions run on their own goroutines. Completion events are delivered by a
// single dispatcher goroutine, in completion order, so subscribers never run
// concurrently with each other.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is reported for tasks submitted after Close.
var ErrClosed = errors.New("task runner closed")

// Func is the body of a task. The payload is attached to the completion event.
type Func func() (any, error)

// Event describes a finished task.
type Event struct {
	TaskID     string
	Name       string
	Payload    any
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the task ran.
func (e Event) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Subscriber receives completion events on the dispatcher goroutine.
type Subscriber func(Event)

// Task is a handle to a submitted action.
type Task struct {
	ID   string
	Name string

	done  chan struct{}
	event Event
}

// Done is closed once the task's event has been delivered to every subscriber.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task is done or ctx ends. When ctx ends first, Wait
// returns ctx.Err() and the task keeps running.
func (t *Task) Wait(ctx context.Context) (Event, error) {
	select {
	case <-t.done:
		return t.event, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Runner executes tasks and dispatches their events.
type Runner struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers []Subscriber
	closed      bool

	running    sync.WaitGroup
	events     chan *Task
	dispatched chan struct{}
	closeOnce  sync.Once
}

// NewRunner starts a runner and its dispatcher goroutine. A nil logger
// discards output.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Runner{
		logger:     logger,
		events:     make(chan *Task, 64),
		dispatched: make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// Subscribe registers fn for every event dispatched after the call.
func (r *Runner) Subscribe(fn Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// Submit starts fn on a new goroutine and returns its handle.
func (r *Runner) Submit(name string, fn Func) *Task {
	t := &Task{
		ID:   uuid.New().String(),
		Name: name,
		done: make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		now := time.Now()
		t.event = Event{TaskID: t.ID, Name: name, Err: ErrClosed, StartedAt: now, FinishedAt: now}
		close(t.done)
		return t
	}
	r.running.Add(1)
	r.mu.Unlock()

	go r.run(t, fn)
	return t
}

func (r *Runner) run(t *Task, fn Func) {
	defer r.running.Done()

	started := time.Now()
	r.logger.Debug("task started", "task", t.Name, "id", t.ID)

	payload, err := call(fn)

	t.event = Event{
		TaskID:     t.ID,
		Name:       t.Name,
		Payload:    payload,
		Err:        err,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	r.events <- t
}

// call runs fn, turning a panic into an error.
func call(fn Func) (payload any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return fn()
}

func (r *Runner) dispatch() {
	defer close(r.dispatched)

	for t := range r.events {
		r.mu.Lock()
		subs := append([]Subscriber(nil), r.subscribers...)
		r.mu.Unlock()

		for _, fn := range subs {
			deliver(r.logger, fn, t.event)
		}

		if t.event.Err != nil {
			r.logger.Debug("task failed", "task", t.Name, "id", t.ID, "error", t.event.Err)
		} else {
			r.logger.Debug("task finished", "task", t.Name, "id", t.ID, "duration", t.event.Duration())
		}
		close(t.done)
	}
}

func deliver(logger *slog.Logger, fn Subscriber, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("subscriber panicked", "task", ev.Name, "panic", p)
		}
	}()
	fn(ev)
}

// Close stops accepting tasks, waits for running tasks to finish and drains
// every pending event to subscribers. It is safe to call more than once.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		r.running.Wait()
		close(r.events)
		<-r.dispatched
	})
}
