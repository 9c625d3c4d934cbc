/*
Package cloudstate keeps an in-process, continuously refreshed view of the cluster layout
(collections, shards, replicas, leaders and live nodes) by watching the coordination service.

Other components read the current Snapshot instead of talking to the coordination service.
The Snapshot is replaced atomically as a whole on every refresh, readers never block and never
see a half updated view.
*/
package cloudstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justloop/cloudstate/cloud"
	"github.com/justloop/cloudstate/coord"
	"github.com/justloop/cloudstate/metrics"
	"github.com/justloop/cloudstate/scheduler"
	"github.com/justloop/cloudstate/statecache"
	"github.com/justloop/cloudstate/utils"
	log "github.com/sirupsen/logrus"
)

// logTag is the logging tag related to the reader
var logTag = "cloudstate.reader"

func logger() *log.Entry {
	return log.WithField("tag", logTag)
}

// state represents the internal state of a Reader instance.
type state uint

const (
	// created means the reader has been created, but it has not been bootstrapped
	created state = iota
	// ready means the first snapshot is published and watches are installed
	ready
	// destroyed means the reader has been closed and cannot be revived.
	destroyed
)

func (s state) String() string {
	switch s {
	case created:
		return "created"
	case ready:
		return "ready"
	case destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// refresh kinds and triggers, used in logs and metrics
const (
	kindFull      = "full"
	kindLiveNodes = "live_nodes"

	triggerBootstrap = "bootstrap"
	triggerReconnect = "reconnect"
	triggerManual    = "manual"
	triggerScheduled = "scheduled"
	triggerWatch     = "watch"
)

func kindOf(full bool) string {
	if full {
		return kindFull
	}
	return kindLiveNodes
}

// Reader is the interface of the cluster state reader.
type Reader interface {
	// Bootstrap installs the watches and publishes the first snapshot,
	// it has to succeed before the reader serves queries
	Bootstrap(ctx context.Context) error

	// RefreshNow reloads the live nodes, and the topology as well when full is true,
	// and publishes the result before returning
	RefreshNow(ctx context.Context, full bool) error

	// ScheduleRefresh asks for a refresh after the update delay,
	// requests made while one is pending are merged into it
	ScheduleRefresh(full bool) error

	// CurrentSnapshot returns the latest published snapshot without blocking,
	// nil before Bootstrap
	CurrentSnapshot() *cloud.Snapshot

	// GetLeader polls the current snapshot until the shard has a leader or the poll budget is spent
	GetLeader(ctx context.Context, collection, shard string) (cloud.Props, error)

	// GetLeaderURL returns the core url of the shard leader
	GetLeaderURL(ctx context.Context, collection, shard string) (string, error)

	// Ready reports whether the reader is bootstrapped and not closed
	Ready() bool

	// Debug returns debug information as map[string]interface{}
	Debug() map[string]interface{}

	// Close stops the reader, it is safe to call multiple times
	Close() error
}

// Impl is the implementation of Reader
type Impl struct {
	// cancelCtx is cancelled on Close, it aborts retries and leader polls
	cancelCtx context.Context

	// cancelFunc is the cancelFunc for the cancelCtx
	cancelFunc context.CancelFunc

	// config is the reader configuration
	config *Config

	// client is the coordination service client
	client coord.Client

	// ownsClient is true when the reader created the client and has to close it
	ownsClient bool

	// executor retries the transient coordination failures
	executor *coord.Executor

	// snapshot is the current snapshot, replaced as a whole
	snapshot atomic.Pointer[cloud.Snapshot]

	// updateMu serialises every path that publishes a snapshot, it also guards the pending fields
	updateMu sync.Mutex

	// refreshPending is true while a delayed refresh is scheduled
	refreshPending bool

	// pendingFull is true when the pending delayed refresh reloads the topology
	pendingFull bool

	// pending mirrors refreshPending for readers that must not wait on updateMu
	pending atomic.Bool

	// scheduler runs the delayed refreshes
	scheduler *scheduler.Scheduler

	topologyWatch  *watch[[]byte]
	liveNodesWatch *watch[[]string]

	// cache keeps the last published snapshot on disk, nil when disabled
	cache *statecache.Cache

	// startTime is when the reader became ready
	startTime time.Time

	// state is the state of current reader
	state state

	// stateMutex is the mutex to access state and startTime
	stateMutex sync.RWMutex
}

// New creates a reader on top of a client owned by the caller, the client is not closed by Close
func New(client coord.Client, config *Config) (*Impl, error) {
	config = setDefaultConfig(config)
	reader := &Impl{
		config:    config,
		client:    client,
		executor:  coord.NewExecutor(config.RetryCount, config.RetryDelay),
		scheduler: scheduler.New(),
	}
	reader.cancelCtx, reader.cancelFunc = context.WithCancel(context.Background())
	reader.topologyWatch = newWatch(reader, "cluster_state", kindFull, cloud.ClusterStateNode, client.Data, reader.applyClusterStateLocked)
	reader.liveNodesWatch = newWatch(reader, "live_nodes", kindLiveNodes, cloud.LiveNodesNode, client.Children, reader.applyLiveNodesLocked)

	if config.CacheDir != "" {
		cache, err := statecache.Open(config.CacheDir)
		if err != nil {
			reader.scheduler.Stop()
			reader.cancelFunc()
			return nil, err
		}
		cache.SetProvider(reader)
		reader.cache = cache
		logger().Infof("State cache opened at %s", config.CacheDir)
	}

	if notifier, ok := client.(coord.SessionNotifier); ok {
		notifier.AddSessionHandler(NewReconnectHandler(reader.reinstall, reader.rearmIdleWatches).Handler)
		logger().Debug("Reconnect handler added...")
	}

	reader.setState(created)
	return reader, nil
}

// NewWithServers creates a reader owning a new ZooKeeper client built from config.CoordConfig
func NewWithServers(config *Config) (*Impl, error) {
	config = setDefaultConfig(config)
	client, err := coord.NewZkClient(config.CoordConfig)
	if err != nil {
		return nil, newStateError("connect", err)
	}
	reader, err := New(client, config)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	reader.ownsClient = true
	return reader, nil
}

// Bootstrap implements Reader. Calling it again on a ready reader is a no-op.
func (n *Impl) Bootstrap(ctx context.Context) error {
	switch n.getState() {
	case destroyed:
		return ErrClosed
	case ready:
		return nil
	}

	n.updateMu.Lock()
	err := n.createWatchersAndUpdateLocked(ctx, triggerBootstrap)
	n.updateMu.Unlock()
	if err != nil {
		return err
	}

	n.stateMutex.Lock()
	if n.state == created {
		n.state = ready
		n.startTime = time.Now()
	}
	n.stateMutex.Unlock()
	logger().Info("Cluster state reader is ready")
	return nil
}

// createWatchersAndUpdateLocked makes sure the well known nodes exist, arms both watches
// and publishes a full snapshot built from what arming them returned.
func (n *Impl) createWatchersAndUpdateLocked(ctx context.Context, trigger string) error {
	logger().Info("Updating cluster state from the coordination service...")

	for _, path := range []string{cloud.ClusterStateNode, cloud.LiveNodesNode} {
		if err := n.executor.EnsurePath(ctx, n.client, path, nil); err != nil {
			n.recordFailure(trigger, kindFull, err)
			return newStateError(trigger, err)
		}
	}

	data, err := n.topologyWatch.arm(ctx)
	if err != nil {
		n.recordFailure(trigger, kindFull, err)
		return newStateError(trigger, err)
	}
	names, err := n.liveNodesWatch.arm(ctx)
	if err != nil {
		n.recordFailure(trigger, kindFull, err)
		return newStateError(trigger, err)
	}

	snapshot, err := n.config.Decoder.Decode(data, cloud.NewLiveNodes(names))
	if err != nil {
		n.recordFailure(trigger, kindFull, err)
		return newStateError(trigger, err)
	}
	n.publishLocked(snapshot, trigger, kindFull)
	return nil
}

// RefreshNow implements Reader
func (n *Impl) RefreshNow(ctx context.Context, full bool) error {
	if err := n.checkReady(); err != nil {
		return err
	}
	logger().Info("Manual update of cluster state initiated")

	n.updateMu.Lock()
	defer n.updateMu.Unlock()
	return n.refreshLocked(ctx, triggerManual, full)
}

// refreshLocked fetches the live nodes, and the cluster state document when full,
// builds the snapshot and publishes it
func (n *Impl) refreshLocked(ctx context.Context, trigger string, full bool) error {
	kind := kindOf(full)
	names, err := coord.Retry(ctx, n.executor, "children", func() ([]string, error) {
		return n.client.Children(cloud.LiveNodesNode, nil)
	})
	if err != nil {
		n.recordFailure(trigger, kind, err)
		return newStateError("refresh", err)
	}
	liveNodes := cloud.NewLiveNodes(names)

	var snapshot *cloud.Snapshot
	if full {
		logger().Info("Updating cloud state from the coordination service...")
		data, err := coord.Retry(ctx, n.executor, "data", func() ([]byte, error) {
			return n.client.Data(cloud.ClusterStateNode, nil)
		})
		if err != nil {
			n.recordFailure(trigger, kind, err)
			return newStateError("refresh", err)
		}
		if snapshot, err = n.config.Decoder.Decode(data, liveNodes); err != nil {
			n.recordFailure(trigger, kind, err)
			return newStateError("refresh", err)
		}
	} else {
		logger().Info("Updating live nodes from the coordination service...")
		snapshot = n.currentOrEmpty().WithLiveNodes(liveNodes)
	}
	n.publishLocked(snapshot, trigger, kind)
	return nil
}

// ScheduleRefresh implements Reader. While a refresh is pending further calls only
// widen it to a full refresh when asked, the delay is not restarted.
func (n *Impl) ScheduleRefresh(full bool) error {
	if err := n.checkReady(); err != nil {
		return err
	}

	n.updateMu.Lock()
	defer n.updateMu.Unlock()
	if n.refreshPending {
		if full && !n.pendingFull {
			n.pendingFull = true
			logger().Debug("Pending cluster state update widened to a full update")
		}
		logger().Info("Cluster state update already scheduled")
		return nil
	}

	logger().Infof("Scheduling cluster state update in %s...", n.config.UpdateDelay)
	if err := n.scheduler.Schedule(n.config.UpdateDelay, n.runScheduledRefresh); err != nil {
		return ErrClosed
	}
	n.refreshPending = true
	n.pendingFull = full
	n.pending.Store(true)
	metrics.SetPending(true)
	return nil
}

// runScheduledRefresh runs on the scheduler goroutine
func (n *Impl) runScheduledRefresh() {
	n.updateMu.Lock()
	defer n.updateMu.Unlock()
	if !n.refreshPending || n.isDestroyed() {
		return
	}
	full := n.pendingFull
	n.refreshPending = false
	n.pendingFull = false
	n.pending.Store(false)
	metrics.SetPending(false)

	logger().Info("Updating cluster state from the coordination service...")
	if err := n.refreshLocked(n.cancelCtx, triggerScheduled, full); err != nil {
		if coord.IsTransient(err) {
			logger().Warnf("Scheduled update failed, cannot talk to the coordination service: %s", err)
			return
		}
		logger().Errorf("Scheduled update failed: %s", err)
	}
}

// applyClusterStateLocked publishes the topology from a cluster state watch with the current live nodes
func (n *Impl) applyClusterStateLocked(data []byte) error {
	snapshot, err := n.config.Decoder.Decode(data, n.currentOrEmpty().LiveNodes())
	if err != nil {
		return err
	}
	n.publishLocked(snapshot, triggerWatch, kindFull)
	return nil
}

// applyLiveNodesLocked publishes the live nodes from a live nodes watch with the current topology
func (n *Impl) applyLiveNodesLocked(names []string) error {
	n.publishLocked(n.currentOrEmpty().WithLiveNodes(cloud.NewLiveNodes(names)), triggerWatch, kindLiveNodes)
	return nil
}

// publishLocked replaces the current snapshot
func (n *Impl) publishLocked(snapshot *cloud.Snapshot, trigger, kind string) {
	prev := n.snapshot.Swap(snapshot)

	metrics.RecordRefresh(trigger, kind, "ok")
	metrics.ObserveSnapshot(snapshot.LiveNodes().Len(), len(snapshot.Collections()))

	if prev != nil && !prev.LiveNodes().Equal(snapshot.LiveNodes()) {
		removed, added := utils.Difference(prev.LiveNodes().List(), snapshot.LiveNodes().List())
		logger().Infof("Live nodes changed, added: %v, removed: %v, checksum: %d", added, removed, snapshot.LiveNodes().Checksum())
	}
	logger().Debugf("Published %s snapshot (%s), %d live nodes, collections: %v",
		kind, trigger, snapshot.LiveNodes().Len(), snapshot.Collections())

	if n.cache != nil {
		n.cache.MarkDirty()
	}
}

func (n *Impl) recordFailure(trigger, kind string, err error) {
	result := "error"
	if coord.IsTransient(err) {
		result = "transient"
	}
	metrics.RecordRefresh(trigger, kind, result)
}

// reinstall runs the bootstrap sequence again after the session was re-established
func (n *Impl) reinstall() {
	if !n.Ready() {
		return
	}
	go func() {
		defer utils.DoPanicRecovery("reader.reinstall")
		n.updateMu.Lock()
		defer n.updateMu.Unlock()
		if n.isDestroyed() {
			return
		}
		if err := n.createWatchersAndUpdateLocked(n.cancelCtx, triggerReconnect); err != nil {
			logger().Errorf("Reinstalling watches after reconnect failed: %s", err)
		}
	}()
}

// rearmIdleWatches re-arms the watches a transient failure left unarmed, the session is still the same
func (n *Impl) rearmIdleWatches() {
	if !n.Ready() {
		return
	}
	go func() {
		defer utils.DoPanicRecovery("reader.rearmIdleWatches")
		n.updateMu.Lock()
		defer n.updateMu.Unlock()
		for _, w := range []stateWatch{n.topologyWatch, n.liveNodesWatch} {
			if n.isDestroyed() || w.currentState() != watchIdle {
				continue
			}
			logger().Infof("Re-arming %s watch after reconnect", w.watchName())
			if err := w.refreshLocked(n.cancelCtx); err != nil {
				w.fail(err)
			}
		}
	}()
}

// CurrentSnapshot implements Reader
func (n *Impl) CurrentSnapshot() *cloud.Snapshot {
	return n.snapshot.Load()
}

func (n *Impl) currentOrEmpty() *cloud.Snapshot {
	if s := n.snapshot.Load(); s != nil {
		return s
	}
	return cloud.EmptySnapshot()
}

// GetLeader implements Reader
func (n *Impl) GetLeader(ctx context.Context, collection, shard string) (cloud.Props, error) {
	start := time.Now()
	ticker := time.NewTicker(n.config.LeaderPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < n.config.LeaderPollAttempts; attempt++ {
		if snapshot := n.snapshot.Load(); snapshot != nil {
			if props, ok := snapshot.Leader(collection, shard); ok {
				metrics.LeaderLookup.WithLabelValues("found").Observe(time.Since(start).Seconds())
				return props, nil
			}
		}
		select {
		case <-ctx.Done():
			metrics.LeaderLookup.WithLabelValues("interrupted").Observe(time.Since(start).Seconds())
			return cloud.Props{}, coord.Interrupted(ctx.Err())
		case <-n.cancelCtx.Done():
			return cloud.Props{}, ErrClosed
		case <-ticker.C:
		}
	}

	metrics.LeaderLookup.WithLabelValues("not_found").Observe(time.Since(start).Seconds())
	return cloud.Props{}, &NoLeaderError{Collection: collection, Shard: shard}
}

// GetLeaderURL implements Reader
func (n *Impl) GetLeaderURL(ctx context.Context, collection, shard string) (string, error) {
	props, err := n.GetLeader(ctx, collection, shard)
	if err != nil {
		return "", err
	}
	return props.CoreURL(), nil
}

// Ready implements Reader
func (n *Impl) Ready() bool {
	return n.getState() == ready
}

// Debug will return the list of debug info related to the reader
func (n *Impl) Debug() map[string]interface{} {
	n.stateMutex.RLock()
	debug := map[string]interface{}{
		"status": n.state.String(),
		"uptime": 0.0,
	}
	if n.state == ready {
		debug["uptime"] = time.Since(n.startTime).Seconds()
	}
	n.stateMutex.RUnlock()

	if snapshot := n.snapshot.Load(); snapshot != nil {
		debug["live_nodes"] = snapshot.LiveNodes().List()
		debug["collections"] = snapshot.Collections()
	}
	debug["refresh_pending"] = n.pending.Load()
	debug["watches"] = map[string]interface{}{
		n.topologyWatch.watchName():  n.topologyWatch.stats(),
		n.liveNodesWatch.watchName(): n.liveNodesWatch.stats(),
	}
	return debug
}

// Close implements Reader
func (n *Impl) Close() error {
	n.stateMutex.Lock()
	if n.state == destroyed {
		n.stateMutex.Unlock()
		return nil
	}
	n.state = destroyed
	n.stateMutex.Unlock()

	n.cancelFunc()
	n.scheduler.Stop()

	n.updateMu.Lock()
	n.refreshPending = false
	n.pendingFull = false
	n.pending.Store(false)
	n.updateMu.Unlock()
	metrics.SetPending(false)

	var err error
	if n.cache != nil {
		if cerr := n.cache.Close(); cerr != nil {
			logger().Warnf("Closing state cache got error: %s", cerr)
		}
	}
	if n.ownsClient {
		if cerr := n.client.Close(); cerr != nil {
			err = newStateError("close", cerr)
		}
	}
	logger().Info("Cluster state reader closed")
	return err
}

func (n *Impl) checkReady() error {
	switch n.getState() {
	case destroyed:
		return ErrClosed
	case created:
		return ErrNotReady
	}
	return nil
}

// isDestroyed returns whether the reader is closed
func (n *Impl) isDestroyed() bool {
	return n.getState() == destroyed
}

// getState gets the state of the current reader instance.
func (n *Impl) getState() state {
	n.stateMutex.RLock()
	r := n.state
	n.stateMutex.RUnlock()
	return r
}

// setState sets the state of the current reader instance.
func (n *Impl) setState(s state) {
	n.stateMutex.Lock()
	n.state = s
	n.stateMutex.Unlock()
}
