// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package frametest provides an owning goroutine for frame queues in tests.
package frametest

import (
	"errors"
	"testing"

	"github.com/devblok/korusync/frame"
)

// Owner runs closures on a goroutine bound to a queue.
type Owner struct {
	queue *frame.Queue
	work  chan func()
	done  chan struct{}
}

// StartOwner binds q to a new goroutine for the duration of the test.
// The test is skipped where thread identity is unsupported.
func StartOwner(t testing.TB, q *frame.Queue) *Owner {
	t.Helper()

	o := &Owner{
		queue: q,
		work:  make(chan func()),
		done:  make(chan struct{}),
	}
	bound := make(chan error, 1)
	go func() {
		defer close(o.done)
		err := q.Bind()
		bound <- err
		if err != nil {
			return
		}
		for f := range o.work {
			f()
		}
		q.Release()
	}()

	if err := <-bound; errors.Is(err, frame.ErrThreadUnsupported) {
		t.Skip(err)
	} else if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(o.stop)
	return o
}

// Do runs f on the owning goroutine and waits for it.
func (o *Owner) Do(f func()) {
	done := make(chan struct{})
	o.work <- func() {
		defer close(done)
		f()
	}
	<-done
}

// Drain drains the queue on the owning goroutine.
func (o *Owner) Drain() (n int, err error) {
	o.Do(func() { n, err = o.queue.Drain() })
	return n, err
}

func (o *Owner) stop() {
	close(o.work)
	<-o.done
}
