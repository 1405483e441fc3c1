package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_RespectsCeiling(t *testing.T) {
	const limit = 3
	const total = 10

	s := New[int](limit)
	release := make(chan struct{})
	var concurrent, peak int32

	var chans []<-chan Result[int]
	for i := 0; i < total; i++ {
		i := i
		chans = append(chans, s.Submit(context.Background(), func(ctx context.Context) (int, error) {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&concurrent, -1)
			return i, nil
		}))
	}

	// Give the first wave time to start.
	require.Eventually(t, func() bool { return s.Running() == limit }, time.Second, time.Millisecond)
	assert.Equal(t, total-limit, s.Queued())

	close(release)

	seen := make(map[int]bool)
	for _, ch := range chans {
		res := <-ch
		require.NoError(t, res.Err)
		assert.False(t, seen[res.Value], "task %d resolved twice", res.Value)
		seen[res.Value] = true
	}
	assert.Len(t, seen, total)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
	assert.Equal(t, 0, s.Running())
	assert.Equal(t, 0, s.Queued())
}

func TestSubmit_FIFOAdmission(t *testing.T) {
	s := New[int](1)
	gate := make(chan struct{})
	var order []int
	var mu sync.Mutex

	// Occupy the single slot so the rest queue up in submission order.
	blocker := s.Submit(context.Background(), func(ctx context.Context) (int, error) {
		<-gate
		return -1, nil
	})

	var chans []<-chan Result[int]
	for i := 0; i < 5; i++ {
		i := i
		chans = append(chans, s.Submit(context.Background(), func(ctx context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
	}

	close(gate)
	<-blocker
	for _, ch := range chans {
		<-ch
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSubmit_FailureIsolation(t *testing.T) {
	s := New[string](2)
	boom := errors.New("boom")

	bad := s.Submit(context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	})
	good := s.Submit(context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	res := <-bad
	assert.ErrorIs(t, res.Err, boom)

	res = <-good
	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Value)
}

func TestDo_Blocking(t *testing.T) {
	s := New[int](1)
	v, err := s.Do(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestNew_ClampsLimit(t *testing.T) {
	s := New[int](0)
	v, err := s.Do(context.Background(), func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
