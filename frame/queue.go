// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package frame runs GPU-affecting work on the one OS thread that owns
// the graphics context. Work can be submitted from any goroutine and is
// executed in submission order, either straight away when the submitter is
// the owner or on the owner's next Drain.
package frame

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// package errors
var (
	ErrAlreadyBound      = errors.New("frame: queue already bound to a thread")
	ErrNotOwner          = errors.New("frame: caller is not the owning thread")
	ErrThreadUnsupported = errors.New("frame: thread identity unsupported on this platform")
)

// ErrorHandler receives every task failure. It is called on the owning
// thread, from inside Drain.
type ErrorHandler func(Task, error)

// Stats holds counters of a Queue.
type Stats struct {
	Submitted uint64
	Executed  uint64
	Failed    uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithErrorHandler replaces the default handler, which logs the failure.
func WithErrorHandler(h ErrorHandler) Option {
	return func(q *Queue) {
		q.handler = h
	}
}

// WithLogger sets the logger used by the default error handler.
func WithLogger(l *log.Entry) Option {
	return func(q *Queue) {
		q.log = l
	}
}

// NewQueue creates an unbound queue. Until Bind is called no caller is the
// owner, every task is deferred to Drain.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		log: log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.handler == nil {
		q.handler = q.logFailure
	}
	return q
}

// Queue is a FIFO of tasks with a single draining owner and any number of
// submitters.
type Queue struct {
	handler ErrorHandler
	log     *log.Entry

	mutex   sync.Mutex
	pending []Task

	// owner is the OS thread id of the bound goroutine, 0 when unbound.
	owner atomic.Int64

	// draining is set while a batch runs. At most one batch runs at a time.
	draining atomic.Bool

	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
}

// Bind makes the calling goroutine the owner of the queue. The goroutine is
// locked to its OS thread until Release.
func (q *Queue) Bind() error {
	if !threadIdentity {
		return ErrThreadUnsupported
	}
	runtime.LockOSThread()
	if !q.owner.CompareAndSwap(0, currentThread()) {
		runtime.UnlockOSThread()
		return ErrAlreadyBound
	}
	return nil
}

// Release gives up ownership. It must be called by the owner.
func (q *Queue) Release() error {
	if !q.IsOwner() {
		return ErrNotOwner
	}
	q.owner.Store(0)
	runtime.UnlockOSThread()
	return nil
}

// IsOwner reports whether the caller runs on the owning thread.
func (q *Queue) IsOwner() bool {
	id := q.owner.Load()
	return id != 0 && id == currentThread()
}

// Submit adds a task to the queue. On the owning thread the queue is drained
// right away, tasks already pending run first. Submissions made while a
// drain is in progress wait for the next Drain.
func (q *Queue) Submit(t Task) {
	q.submitted.Add(1)
	q.mutex.Lock()
	q.pending = append(q.pending, t)
	q.mutex.Unlock()

	if q.IsOwner() && !q.draining.Load() {
		q.drain()
	}
}

// Drain runs every task pending at the time of the call, in order, and
// returns how many ran. Once bound, only the owner may drain. Drain returns
// 0 without running anything while another drain is in progress.
func (q *Queue) Drain() (int, error) {
	if q.owner.Load() != 0 && !q.IsOwner() {
		return 0, ErrNotOwner
	}
	return q.drain(), nil
}

// Pending returns the number of tasks waiting for a drain.
func (q *Queue) Pending() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.pending)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Executed:  q.executed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *Queue) drain() int {
	if !q.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer q.draining.Store(false)

	q.mutex.Lock()
	batch := q.pending
	q.pending = nil
	q.mutex.Unlock()

	for idx, t := range batch {
		batch[idx] = nil
		q.run(t)
	}
	return len(batch)
}

func (q *Queue) run(t Task) {
	err := safeRun(t)
	q.executed.Add(1)
	if err == nil {
		return
	}
	q.failed.Add(1)
	q.handler(t, &TaskError{Task: t, Err: err})
}

func safeRun(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run()
}

func (q *Queue) logFailure(t Task, err error) {
	q.log.WithFields(log.Fields{
		"task":  describe(t),
		"error": err,
	}).Error("frame task failed")
}
