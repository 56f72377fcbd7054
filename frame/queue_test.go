// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// owner runs closures on a goroutine bound to a queue.
type owner struct {
	queue *Queue
	work  chan func()
	done  chan struct{}
}

func startOwner(t *testing.T, q *Queue) *owner {
	t.Helper()
	if !threadIdentity {
		t.Skip("thread identity unsupported")
	}

	o := &owner{
		queue: q,
		work:  make(chan func()),
		done:  make(chan struct{}),
	}
	bound := make(chan error, 1)
	go func() {
		defer close(o.done)
		err := q.Bind()
		bound <- err
		for f := range o.work {
			f()
		}
		if err == nil {
			q.Release()
		}
	}()
	t.Cleanup(func() {
		close(o.work)
		<-o.done
	})
	require.NoError(t, <-bound)
	return o
}

func (o *owner) do(f func()) {
	done := make(chan struct{})
	o.work <- func() {
		defer close(done)
		f()
	}
	<-done
}

func (o *owner) drain(t *testing.T) int {
	var (
		n   int
		err error
	)
	o.do(func() { n, err = o.queue.Drain() })
	require.NoError(t, err)
	return n
}

// recorder collects task names in execution order.
type recorder struct {
	mutex sync.Mutex
	names []string
	owned []bool
}

func (r *recorder) task(q *Queue, name string) Task {
	return Func(func() error {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.names = append(r.names, name)
		r.owned = append(r.owned, q.IsOwner())
		return nil
	})
}

func (r *recorder) ran() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.names...)
}

func TestDrainEmpty(t *testing.T) {
	q := NewQueue()
	n, err := q.Drain()
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, Stats{}, q.Stats())
}

func TestUnboundQueueDefers(t *testing.T) {
	q := NewQueue()
	var r recorder

	q.Submit(r.task(q, "a"))
	q.Submit(r.task(q, "b"))
	assert.False(t, q.IsOwner())
	assert.Empty(t, r.ran())
	assert.Equal(t, 2, q.Pending())

	n, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, r.ran())
	assert.Zero(t, q.Pending())
}

func TestSubmitFromOtherGoroutineIsDeferred(t *testing.T) {
	q := NewQueue()
	o := startOwner(t, q)
	var r recorder

	q.Submit(r.task(q, "attach"))
	assert.Empty(t, r.ran(), "task ran before the owner drained")
	assert.Equal(t, 1, q.Pending())

	assert.Equal(t, 1, o.drain(t))
	assert.Equal(t, []string{"attach"}, r.ran())
	assert.Equal(t, []bool{true}, r.owned)
}

func TestSubmitOnOwnerRunsImmediately(t *testing.T) {
	q := NewQueue()
	o := startOwner(t, q)
	var r recorder

	o.do(func() {
		q.Submit(r.task(q, "attach"))
		assert.Equal(t, []string{"attach"}, r.ran())
	})
	assert.Zero(t, q.Pending())
}

func TestSubmitOnOwnerRunsPendingFirst(t *testing.T) {
	q := NewQueue()
	o := startOwner(t, q)
	var r recorder

	q.Submit(r.task(q, "first"))
	q.Submit(r.task(q, "second"))
	o.do(func() {
		q.Submit(r.task(q, "third"))
	})
	assert.Equal(t, []string{"first", "second", "third"}, r.ran())
	assert.Equal(t, []bool{true, true, true}, r.owned)
}

func TestSubmitDuringDrainWaitsForNextDrain(t *testing.T) {
	q := NewQueue()
	o := startOwner(t, q)
	var r recorder

	q.Submit(Func(func() error {
		q.Submit(r.task(q, "nested"))
		return nil
	}))
	q.Submit(r.task(q, "outer"))

	assert.Equal(t, 2, o.drain(t))
	assert.Equal(t, []string{"outer"}, r.ran())
	assert.Equal(t, 1, q.Pending())

	assert.Equal(t, 1, o.drain(t))
	assert.Equal(t, []string{"outer", "nested"}, r.ran())
}

func TestNestedDrainIsNoop(t *testing.T) {
	q := NewQueue()
	var (
		r      recorder
		nested int
	)

	q.Submit(Func(func() error {
		q.Submit(r.task(q, "late"))
		var err error
		nested, err = q.Drain()
		return err
	}))

	n, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, nested)
	assert.Empty(t, r.ran())

	n, err = q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"late"}, r.ran())
}

func TestFailuresDoNotStopDrain(t *testing.T) {
	var failures []error
	q := NewQueue(WithErrorHandler(func(_ Task, err error) {
		failures = append(failures, err)
	}))
	var r recorder
	errBroken := errors.New("broken")

	q.Submit(r.task(q, "before"))
	q.Submit(Func(func() error { return errBroken }))
	q.Submit(Func(func() error { panic("driver lost") }))
	q.Submit(r.task(q, "after"))

	n, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"before", "after"}, r.ran())

	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], errBroken)
	var te *TaskError
	require.ErrorAs(t, failures[1], &te)
	assert.Contains(t, te.Err.Error(), "driver lost")

	assert.Equal(t, Stats{Submitted: 4, Executed: 4, Failed: 2}, q.Stats())
}

func TestDefaultHandlerLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := NewQueue(WithLogger(log.NewEntry(logger)))

	q.Submit(Func(func() error { return errors.New("upload failed") }))
	_, err := q.Drain()
	require.NoError(t, err)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, "frame task failed", entry.Message)
	assert.Equal(t, "frame.Func", entry.Data["task"])
}

func TestDrainFromOtherGoroutine(t *testing.T) {
	q := NewQueue()
	startOwner(t, q)

	q.Submit(Func(func() error { return nil }))
	n, err := q.Drain()
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Zero(t, n)
	assert.Equal(t, 1, q.Pending())
}

func TestBindTwice(t *testing.T) {
	q := NewQueue()
	o := startOwner(t, q)

	o.do(func() {
		assert.ErrorIs(t, q.Bind(), ErrAlreadyBound)
		assert.True(t, q.IsOwner())
	})

	errs := make(chan error, 1)
	go func() { errs <- q.Bind() }()
	assert.ErrorIs(t, <-errs, ErrAlreadyBound)
	assert.ErrorIs(t, q.Release(), ErrNotOwner)
}

func TestConcurrentSubmittersKeepOrder(t *testing.T) {
	const (
		submitters = 8
		perWorker  = 500
	)
	q := NewQueue()
	o := startOwner(t, q)

	// Only touched by tasks, which all run on the owner.
	seen := make([][]int, submitters)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-stop:
				return
			default:
				o.do(func() { q.Drain() })
			}
		}
	}()

	for w := 0; w < submitters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				i := i
				q.Submit(Func(func() error {
					seen[w] = append(seen[w], i)
					return nil
				}))
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	<-drained
	o.drain(t)

	for w := range seen {
		require.Len(t, seen[w], perWorker)
		for i, v := range seen[w] {
			assert.Equal(t, i, v, "submitter %d out of order", w)
		}
	}
	assert.Equal(t, uint64(submitters*perWorker), q.Stats().Executed)
}

func TestConcurrentUnboundDrainsDoNotOverlap(t *testing.T) {
	const (
		drainers  = 4
		perWorker = 50
	)
	q := NewQueue()

	var active, overlaps atomic.Int32
	// Only touched by tasks, batches never run at the same time.
	seen := make([][]int, drainers)

	var wg sync.WaitGroup
	for w := 0; w < drainers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				i := i
				q.Submit(Func(func() error {
					if active.Add(1) > 1 {
						overlaps.Add(1)
					}
					seen[w] = append(seen[w], i)
					active.Add(-1)
					return nil
				}))
				_, err := q.Drain()
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()
	_, err := q.Drain()
	require.NoError(t, err)

	assert.Zero(t, overlaps.Load())
	assert.Zero(t, q.Pending())
	for w := range seen {
		require.Len(t, seen[w], perWorker)
		for i, v := range seen[w] {
			assert.Equal(t, i, v, "submitter %d out of order", w)
		}
	}
	assert.Equal(t, uint64(drainers*perWorker), q.Stats().Executed)
}

// brokenName is a failing task whose String method panics.
type brokenName struct{}

func (brokenName) Run() error     { return errors.New("no device") }
func (brokenName) String() string { panic("nil material") }

func TestPanickingTaskNameDoesNotStopDrain(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := NewQueue(WithLogger(log.NewEntry(logger)))
	var r recorder

	q.Submit(brokenName{})
	q.Submit(r.task(q, "after"))

	n, err := q.Drain()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"after"}, r.ran())

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "frame.brokenName", hook.LastEntry().Data["task"])
	assert.Equal(t, Stats{Submitted: 2, Executed: 2, Failed: 1}, q.Stats())
}
