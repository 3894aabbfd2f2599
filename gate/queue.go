/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"go.uber.org/atomic"
)

// Task is a unit of work sequenced by AdmissionQueue, RateLimiter and Gate.
// Its error is returned to the submitter unchanged.
type Task func(ctx context.Context) error

// ReleaseFunc returns an acquired slot to its AdmissionQueue.
// It is safe to call it more than once; the slot is returned only the first time.
type ReleaseFunc func()

type waiter struct {
	ready     chan struct{}
	abandoned bool
}

// AdmissionQueue caps the number of simultaneously executing tasks.
// Submissions exceeding the limit wait for a free slot in arrival order.
type AdmissionQueue struct {
	limit int

	mu      sync.Mutex
	active  int
	waiting int
	waiters *linkedlistqueue.Queue // of *waiter, non-empty only while active == limit
}

// NewAdmissionQueue creates a new AdmissionQueue with the given concurrency limit.
func NewAdmissionQueue(limit int) (*AdmissionQueue, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("concurrency limit should be positive, got %d", limit)
	}
	return &AdmissionQueue{limit: limit, waiters: linkedlistqueue.New()}, nil
}

// Limit returns the concurrency limit.
func (q *AdmissionQueue) Limit() int {
	return q.limit
}

// Active returns the number of slots in use.
func (q *AdmissionQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Waiting returns the number of submissions waiting for a slot.
func (q *AdmissionQueue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting
}

// Do waits for a free slot, runs the task and releases the slot on any exit path of the task.
func (q *AdmissionQueue) Do(ctx context.Context, task Task) error {
	release, err := q.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return task(ctx)
}

// Acquire blocks until a slot is granted or ctx is done.
// In the latter case *WaitError is returned and no slot is held.
func (q *AdmissionQueue) Acquire(ctx context.Context) (ReleaseFunc, error) {
	return q.acquire(ctx, nil)
}

// acquire calls onQueued with the number of waiters (this one included) if all slots are busy
// and the caller has to wait.
func (q *AdmissionQueue) acquire(ctx context.Context, onQueued func(waiting int)) (ReleaseFunc, error) {
	q.mu.Lock()
	if q.active < q.limit {
		q.active++
		q.mu.Unlock()
		return q.newReleaseFunc(), nil
	}
	w := &waiter{ready: make(chan struct{})}
	q.waiters.Enqueue(w)
	q.waiting++
	waiting := q.waiting
	q.mu.Unlock()

	if onQueued != nil {
		onQueued(waiting)
	}

	select {
	case <-w.ready:
		return q.newReleaseFunc(), nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	select {
	case <-w.ready:
		// The slot was handed over while the context was being canceled.
		q.mu.Unlock()
		q.release()
	default:
		w.abandoned = true
		q.waiting--
		q.mu.Unlock()
	}
	return nil, &WaitError{Stage: WaitStageAdmission, Inner: ctx.Err()}
}

func (q *AdmissionQueue) newReleaseFunc() ReleaseFunc {
	released := atomic.NewBool(false)
	return func() {
		if released.CompareAndSwap(false, true) {
			q.release()
		}
	}
}

// release hands the slot to the oldest live waiter, so no concurrent Acquire may claim it in between.
func (q *AdmissionQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.waiters.Empty() {
		v, _ := q.waiters.Dequeue()
		w := v.(*waiter)
		if w.abandoned {
			continue
		}
		q.waiting--
		close(w.ready)
		return
	}
	q.active--
}
