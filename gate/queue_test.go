/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var errTest = errors.New("test error")

// holdSlots occupies all slots of the queue until the returned function is called.
func holdSlots(t *testing.T, q *AdmissionQueue) (unblock func()) {
	t.Helper()
	var releases []ReleaseFunc
	for i := 0; i < q.Limit(); i++ {
		release, err := q.Acquire(context.Background())
		require.NoError(t, err)
		releases = append(releases, release)
	}
	return func() {
		for _, release := range releases {
			release()
		}
	}
}

func TestNewAdmissionQueue(t *testing.T) {
	_, err := NewAdmissionQueue(0)
	require.EqualError(t, err, "concurrency limit should be positive, got 0")
	_, err = NewAdmissionQueue(-1)
	require.Error(t, err)

	q, err := NewAdmissionQueue(3)
	require.NoError(t, err)
	require.Equal(t, 3, q.Limit())
	require.Equal(t, 0, q.Active())
	require.Equal(t, 0, q.Waiting())
}

func TestAdmissionQueue_ConcurrencyBound(t *testing.T) {
	const limit = 3
	const tasksNum = 20

	q, err := NewAdmissionQueue(limit)
	require.NoError(t, err)

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < tasksNum; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doErr := q.Do(context.Background(), func(ctx context.Context) error {
				cur := running.Inc()
				defer running.Dec()
				for {
					prev := maxRunning.Load()
					if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				return nil
			})
			assert.NoError(t, doErr)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(limit), maxRunning.Load())
	require.Equal(t, 0, q.Active())
	require.Equal(t, 0, q.Waiting())
}

func TestAdmissionQueue_FIFO(t *testing.T) {
	const tasksNum = 10

	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)
	unblock := holdSlots(t, q)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < tasksNum; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, q.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			}))
		}()
		// Make sure that submissions arrive one by one.
		require.Eventually(t, func() bool { return q.Waiting() == i+1 }, time.Second, time.Millisecond)
	}

	unblock()
	wg.Wait()

	require.Len(t, order, tasksNum)
	for i := range order {
		require.Equal(t, i, order[i])
	}
}

func TestAdmissionQueue_HandoffToWaiter(t *testing.T) {
	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan ReleaseFunc)
	go func() {
		r, acqErr := q.Acquire(context.Background())
		assert.NoError(t, acqErr)
		acquired <- r
	}()
	require.Eventually(t, func() bool { return q.Waiting() == 1 }, time.Second, time.Millisecond)

	release()
	waiterRelease := <-acquired
	// The slot was handed over, so the active count has not dropped.
	require.Equal(t, 1, q.Active())
	require.Equal(t, 0, q.Waiting())

	waiterRelease()
	require.Equal(t, 0, q.Active())
}

func TestAdmissionQueue_FailingTaskReleasesSlot(t *testing.T) {
	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)

	err = q.Do(context.Background(), func(ctx context.Context) error {
		return errTest
	})
	require.ErrorIs(t, err, errTest)
	require.Equal(t, errTest, err)
	require.Equal(t, 0, q.Active())

	var called bool
	require.NoError(t, q.Do(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	}))
	require.True(t, called)
}

func TestAdmissionQueue_PanickingTaskReleasesSlot(t *testing.T) {
	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)

	require.PanicsWithValue(t, "boom", func() {
		_ = q.Do(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	require.Equal(t, 0, q.Active())
}

func TestAdmissionQueue_ContextDoneWhileWaiting(t *testing.T) {
	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)
	unblock := holdSlots(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	var called atomic.Bool
	go func() {
		errCh <- q.Do(ctx, func(ctx context.Context) error {
			called.Store(true)
			return nil
		})
	}()
	require.Eventually(t, func() bool { return q.Waiting() == 1 }, time.Second, time.Millisecond)

	cancel()
	err = <-errCh
	var waitErr *WaitError
	require.ErrorAs(t, err, &waitErr)
	require.Equal(t, WaitStageAdmission, waitErr.Stage)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called.Load())
	require.Equal(t, 0, q.Waiting())

	// The abandoned waiter must not get the slot.
	unblock()
	require.Equal(t, 0, q.Active())
	require.NoError(t, q.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestAdmissionQueue_ContextDeadline(t *testing.T) {
	q, err := NewAdmissionQueue(1)
	require.NoError(t, err)
	unblock := holdSlots(t, q)
	defer unblock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.EqualError(t, err, "wait for admission: context deadline exceeded")
}

func TestAdmissionQueue_ReleaseIsIdempotent(t *testing.T) {
	q, err := NewAdmissionQueue(2)
	require.NoError(t, err)

	release1, err := q.Acquire(context.Background())
	require.NoError(t, err)
	_, err = q.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, q.Active())

	release1()
	release1()
	require.Equal(t, 1, q.Active())
}
