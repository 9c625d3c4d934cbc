package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsOnce(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	done := make(chan struct{})
	require.NoError(t, s.Schedule(20*time.Millisecond, func() {
		runs.Add(1)
		close(done)
	}))
	assert.True(t, s.Pending())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, s.Pending())
}

func TestRescheduleReplaces(t *testing.T) {
	s := New()
	defer s.Stop()

	var first, second atomic.Int32
	require.NoError(t, s.Schedule(30*time.Millisecond, func() { first.Add(1) }))
	require.NoError(t, s.Schedule(60*time.Millisecond, func() { second.Add(1) }))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced task must not run")
	assert.Equal(t, int32(1), second.Load())
}

func TestCancel(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.Schedule(30*time.Millisecond, func() { runs.Add(1) }))
	s.Cancel()
	assert.False(t, s.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	// usable after a cancel
	done := make(chan struct{})
	require.NoError(t, s.Schedule(time.Millisecond, func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run after cancel")
	}
}

func TestStop(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Schedule(30*time.Millisecond, func() { runs.Add(1) }))
	s.Stop()
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load(), "no task runs after stop")
	assert.ErrorIs(t, s.Schedule(time.Millisecond, func() { runs.Add(1) }), ErrStopped)
	assert.False(t, s.Pending())
}

func TestStopWaitsForRunningTask(t *testing.T) {
	s := New()
	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.Schedule(time.Millisecond, func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))
	<-started
	s.Stop()
	assert.True(t, finished.Load())
}

func TestPanicInTask(t *testing.T) {
	s := New()
	defer s.Stop()

	require.NoError(t, s.Schedule(time.Millisecond, func() { panic("boom") }))
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	require.NoError(t, s.Schedule(time.Millisecond, func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler died after a panicking task")
	}
}
