package cloudstate

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/justloop/cloudstate/coord"
	"github.com/justloop/cloudstate/metrics"
)

// watchState is where a watch is in its one-shot cycle
type watchState int32

const (
	// watchIdle means no watch is registered
	watchIdle watchState = iota
	// watchArmed means a watch is registered and waiting for a change
	watchArmed
	// watchFired means the watch fired and is being re-armed
	watchFired
)

func (s watchState) String() string {
	switch s {
	case watchIdle:
		return "idle"
	case watchArmed:
		return "armed"
	case watchFired:
		return "fired"
	default:
		return "unknown"
	}
}

// stateWatch is the type independent view of a watch
type stateWatch interface {
	watchName() string
	currentState() watchState
	refreshLocked(ctx context.Context) error
	fail(err error)
	stats() map[string]interface{}
}

// watch is a re-arming one-shot watch on a node. Every fire re-reads the node,
// registering the next watch in the same call, and hands the result to apply.
// Only the most recent registration is live, fires of older ones are dropped.
type watch[T any] struct {
	name   string
	kind   string
	path   string
	reader *Impl
	fetch  func(path string, watcher coord.Watcher) (T, error)
	apply  func(v T) error

	gen   atomic.Uint64
	state atomic.Int32
	fires atomic.Uint64
}

func newWatch[T any](reader *Impl, name, kind, path string,
	fetch func(string, coord.Watcher) (T, error), apply func(T) error) *watch[T] {
	return &watch[T]{
		name:   name,
		kind:   kind,
		path:   path,
		reader: reader,
		fetch:  fetch,
		apply:  apply,
	}
}

func (w *watch[T]) watchName() string {
	return w.name
}

func (w *watch[T]) currentState() watchState {
	return watchState(w.state.Load())
}

// arm reads the node and registers a new watch with the same call.
// The caller holds the update lock.
func (w *watch[T]) arm(ctx context.Context) (T, error) {
	gen := w.gen.Add(1)
	watcher := func(event coord.Event) {
		w.process(gen, event)
	}
	v, err := coord.Retry(ctx, w.reader.executor, w.name, func() (T, error) {
		return w.fetch(w.path, watcher)
	})
	if err != nil {
		w.state.Store(int32(watchIdle))
		return v, err
	}
	w.state.Store(int32(watchArmed))
	return v, nil
}

// refreshLocked re-arms the watch and applies what was read
func (w *watch[T]) refreshLocked(ctx context.Context) error {
	v, err := w.arm(ctx)
	if err != nil {
		return err
	}
	return w.apply(v)
}

// process is the watch callback
func (w *watch[T]) process(gen uint64, event coord.Event) {
	if event.Type == coord.EventNotWatching {
		if w.gen.Load() == gen {
			w.state.Store(int32(watchIdle))
		}
		logger().Debugf("%s watch removed: %v", w.name, event.Err)
		return
	}
	if w.gen.Load() != gen {
		logger().Debugf("Dropping %s event of a replaced %s watch", event.Type, w.name)
		return
	}

	r := w.reader
	r.updateMu.Lock()
	defer r.updateMu.Unlock()
	// a duplicate fire of this registration may have re-armed the watch meanwhile
	if r.isDestroyed() || w.gen.Load() != gen {
		return
	}

	w.state.Store(int32(watchFired))
	w.fires.Add(1)
	metrics.WatchFires.WithLabelValues(w.name).Inc()
	logger().Infof("A %s change has occurred on %s, (%s)", w.name, w.path, event.Type)
	if err := w.refreshLocked(r.cancelCtx); err != nil {
		w.fail(err)
	}
}

// fail applies the failure policy of a watch callback. Transient failures leave the
// watch unarmed until the connection comes back, anything else goes to OnWatchError.
func (w *watch[T]) fail(err error) {
	r := w.reader
	if r.isDestroyed() || errors.Is(err, coord.ErrInterrupted) {
		return
	}
	if coord.IsTransient(err) {
		metrics.RecordRefresh(triggerWatch, w.kind, "transient")
		logger().Warnf("%s watch triggered, but cannot talk to the coordination service: %s", w.name, err)
		return
	}
	metrics.RecordRefresh(triggerWatch, w.kind, "error")
	r.config.OnWatchError(w.name, newStateError("watch "+w.name, err))
}

func (w *watch[T]) stats() map[string]interface{} {
	return map[string]interface{}{
		"path":  w.path,
		"state": w.currentState().String(),
		"fires": w.fires.Load(),
	}
}
