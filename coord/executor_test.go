package coord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTransient(t *testing.T) {
	e := NewExecutor(5, time.Millisecond)
	calls := 0
	v, err := Retry(context.Background(), e, "data", func() (string, error) {
		calls++
		if calls < 3 {
			return "", ErrConnectionLoss
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetryFatalNotRetried(t *testing.T) {
	e := NewExecutor(5, time.Millisecond)
	fatal := errors.New("bad version")
	calls := 0
	err := e.Do(context.Background(), "create", func() error {
		calls++
		return fatal
	})
	assert.Same(t, fatal, err, "non transient errors are returned unchanged")
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	e := NewExecutor(3, time.Millisecond)
	calls := 0
	err := e.Do(context.Background(), "children", func() error {
		calls++
		return ErrSessionExpired
	})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 3, calls)
}

func TestRetryInterrupted(t *testing.T) {
	e := NewExecutor(10, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := e.Do(ctx, "data", func() error {
		return ErrConnectionLoss
	})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryCancelledBeforeStart(t *testing.T) {
	e := NewExecutor(0, 0)
	assert.Equal(t, DefaultRetryCount, e.RetryCount())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := e.Do(ctx, "data", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.False(t, called)
}

func TestEnsurePath(t *testing.T) {
	c := NewMemoryClient()
	e := NewExecutor(3, time.Millisecond)

	require.NoError(t, e.EnsurePath(context.Background(), c, "/clusterstate.json", nil))
	ok, err := c.Exists("/clusterstate.json")
	require.NoError(t, err)
	assert.True(t, ok)

	// already there: no create attempted
	require.NoError(t, e.EnsurePath(context.Background(), c, "/clusterstate.json", nil))
	assert.Equal(t, 1, c.Calls("create"))
}

// raceClient reports the node missing, then loses the creation race
type raceClient struct {
	*MemoryClient
}

func (r raceClient) Exists(path string) (bool, error) {
	return false, nil
}

func TestEnsurePathLostRace(t *testing.T) {
	c := NewMemoryClient()
	c.Set("/clusterstate.json", []byte("{}"))
	e := NewExecutor(3, time.Millisecond)
	assert.NoError(t, e.EnsurePath(context.Background(), raceClient{c}, "/clusterstate.json", nil))
}

func TestEnsurePathRetriedCreate(t *testing.T) {
	c := NewMemoryClient()
	e := NewExecutor(3, time.Millisecond)
	c.FailNext(1, ErrConnectionLoss)
	assert.NoError(t, e.EnsurePath(context.Background(), c, "/live_nodes", nil))
	ok, _ := c.Exists("/live_nodes")
	assert.True(t, ok)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrConnectionLoss))
	assert.True(t, IsTransient(ErrSessionExpired))
	assert.True(t, IsTransient(Interrupted(ErrConnectionLoss)))
	assert.False(t, IsTransient(ErrNodeExists))
	assert.False(t, IsTransient(errors.New("other")))
	assert.False(t, IsTransient(nil))
}
