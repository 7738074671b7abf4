package scheduler

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

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(nil)
	err := s.Register("bad", "not a cron", func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestRegister_Duplicate(t *testing.T) {
	s := New(nil)
	job := func(ctx context.Context) error { return nil }
	require.NoError(t, s.Register("daily", "0 1 * * *", job))
	err := s.Register("daily", "0 2 * * *", job)
	assert.True(t, errors.Is(err, ErrDuplicateJob))
}

func TestRunNow_NoOverlap(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var concurrent, maxConcurrent int32

	require.NoError(t, s.Register("slow", "0 1 * * *", func(ctx context.Context) error {
		n := atomic.AddInt32(&concurrent, 1)
		if n > atomic.LoadInt32(&maxConcurrent) {
			atomic.StoreInt32(&maxConcurrent, n)
		}
		close(started)
		<-release
		atomic.AddInt32(&concurrent, -1)
		return nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = s.RunNow(context.Background(), "slow")
	}()
	<-started

	err := s.RunNow(context.Background(), "slow")
	assert.True(t, errors.Is(err, ErrJobRunning))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Running)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))

	jobs = s.Jobs()
	assert.False(t, jobs[0].Running)
	assert.Equal(t, int64(1), jobs[0].Runs)
}

func TestRunNow_RecordsErrorAndRecoversPanic(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register("failing", "*/5 * * * *", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, s.Register("panicking", "*/5 * * * *", func(ctx context.Context) error {
		panic("oops")
	}))

	assert.EqualError(t, s.RunNow(context.Background(), "failing"), "boom")
	err := s.RunNow(context.Background(), "panicking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	for _, j := range s.Jobs() {
		assert.NotEmpty(t, j.LastError, j.Name)
		assert.False(t, j.Running, j.Name)
	}

	// a panicking job can run again
	err = s.RunNow(context.Background(), "panicking")
	assert.False(t, errors.Is(err, ErrJobRunning))
}

func TestRunNow_Unknown(t *testing.T) {
	s := New(nil)
	assert.True(t, errors.Is(s.RunNow(context.Background(), "nope"), ErrJobNotFound))
}

func TestRemove(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register("a", "0 1 * * *", func(ctx context.Context) error { return nil }))
	require.NoError(t, s.Register("b", "0 3 * * 0", func(ctx context.Context) error { return nil }))

	require.NoError(t, s.Remove("a"))
	assert.True(t, errors.Is(s.Remove("a"), ErrJobNotFound))
	require.Len(t, s.Jobs(), 1)

	s.RemoveAll()
	assert.Empty(t, s.Jobs())
}

type stubLocker struct {
	held bool
}

func (l *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.held {
		return func() {}, false, nil
	}
	return func() {}, true, nil
}

func TestRunNow_LockHeldElsewhere(t *testing.T) {
	locker := &stubLocker{held: true}
	s := New(nil, WithLocker(locker, time.Minute))
	ran := false
	require.NoError(t, s.Register("locked", "0 1 * * *", func(ctx context.Context) error {
		ran = true
		return nil
	}))

	assert.True(t, errors.Is(s.RunNow(context.Background(), "locked"), ErrLocked))
	assert.False(t, ran)

	locker.held = false
	require.NoError(t, s.RunNow(context.Background(), "locked"))
	assert.True(t, ran)
}

func TestStartStop(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Register("a", "0 1 * * *", func(ctx context.Context) error { return nil }))
	s.Start()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Next.IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
