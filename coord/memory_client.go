package coord

import (
	"path"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

var logTagMemory = "coord.memory"

type memNode struct {
	data []byte
	mode CreateMode
}

// MemoryClient is an in-process coordination service with the same watch semantics:
// watches are one-shot and fire on their own goroutine.
// It is used by tests and for running without a real ensemble.
type MemoryClient struct {
	mu           sync.Mutex
	nodes        map[string]*memNode
	dataWatches  map[string][]Watcher
	childWatches map[string][]Watcher
	handlers     []SessionHandlerFunc
	faults       []error
	calls        map[string]int
	closed       bool
}

// NewMemoryClient creates an empty tree holding only the root node
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		nodes:        map[string]*memNode{"/": {}},
		dataWatches:  make(map[string][]Watcher),
		childWatches: make(map[string][]Watcher),
		calls:        make(map[string]int),
	}
}

// begin counts the call and returns the error the call must fail with, if any.
// Must be called with the lock held.
func (c *MemoryClient) begin(op string) error {
	c.calls[op]++
	if c.closed {
		return ErrClosed
	}
	if len(c.faults) > 0 {
		err := c.faults[0]
		c.faults = c.faults[1:]
		return err
	}
	return nil
}

// Exists implements Client
func (c *MemoryClient) Exists(p string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("exists"); err != nil {
		return false, err
	}
	_, ok := c.nodes[p]
	return ok, nil
}

// Create implements Client
func (c *MemoryClient) Create(p string, data []byte, mode CreateMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("create"); err != nil {
		return err
	}
	if _, ok := c.nodes[p]; ok {
		return ErrNodeExists
	}
	if _, ok := c.nodes[path.Dir(p)]; !ok {
		return ErrNoNode
	}
	c.createLocked(p, data, mode)
	return nil
}

// Children implements Client
func (c *MemoryClient) Children(p string, watcher Watcher) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("children"); err != nil {
		return nil, err
	}
	if _, ok := c.nodes[p]; !ok {
		return nil, ErrNoNode
	}
	if watcher != nil {
		c.childWatches[p] = append(c.childWatches[p], watcher)
	}
	return c.childrenLocked(p), nil
}

// Data implements Client
func (c *MemoryClient) Data(p string, watcher Watcher) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("data"); err != nil {
		return nil, err
	}
	n, ok := c.nodes[p]
	if !ok {
		return nil, ErrNoNode
	}
	if watcher != nil {
		c.dataWatches[p] = append(c.dataWatches[p], watcher)
	}
	return slices.Clone(n.data), nil
}

// Close implements Client, pending watches receive EventNotWatching. It is safe to call multiple times.
func (c *MemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.dropWatchesLocked(ErrClosed)
	return nil
}

// AddSessionHandler implements SessionNotifier
func (c *MemoryClient) AddSessionHandler(handler SessionHandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Set writes data to p, creating it and any missing parent as persistent nodes.
// Watches on p, or on the parent's children when p is created, fire.
func (c *MemoryClient) Set(p string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[p]; ok {
		n.data = slices.Clone(data)
		c.fireLocked(c.dataWatches, p, EventNodeDataChanged)
		return
	}
	c.mkdirsLocked(path.Dir(p))
	c.createLocked(p, data, Persistent)
}

// Delete removes the node at p
func (c *MemoryClient) Delete(p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[p]; !ok {
		return ErrNoNode
	}
	if len(c.childrenLocked(p)) > 0 {
		return ErrNotEmpty
	}
	delete(c.nodes, p)
	c.fireLocked(c.dataWatches, p, EventNodeDeleted)
	c.fireLocked(c.childWatches, p, EventNodeDeleted)
	c.fireLocked(c.childWatches, path.Dir(p), EventNodeChildrenChanged)
	return nil
}

// Expire simulates a session expiry followed by a new session: every watch is dropped
// with EventNotWatching, ephemeral nodes are removed and session handlers see
// SessionExpired then SessionConnected.
func (c *MemoryClient) Expire() {
	c.mu.Lock()
	c.dropWatchesLocked(ErrSessionExpired)
	for p, n := range c.nodes {
		if n.mode == Ephemeral {
			delete(c.nodes, p)
		}
	}
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()

	log.WithField("tag", logTagMemory).Info("session expired")
	for _, h := range handlers {
		h(SessionEvent{Type: SessionExpired})
	}
	for _, h := range handlers {
		h(SessionEvent{Type: SessionConnected})
	}
}

// Reconnect simulates a dropped connection that comes back within the same session:
// watches and ephemeral nodes survive and session handlers see SessionDisconnected
// then SessionConnected.
func (c *MemoryClient) Reconnect() {
	c.mu.Lock()
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()

	log.WithField("tag", logTagMemory).Info("connection resumed")
	for _, h := range handlers {
		h(SessionEvent{Type: SessionDisconnected})
	}
	for _, h := range handlers {
		h(SessionEvent{Type: SessionConnected})
	}
}

// FailNext makes the next n operations fail with err
func (c *MemoryClient) FailNext(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.faults = append(c.faults, err)
	}
}

// Calls returns how many times op (exists, create, children, data) was invoked
func (c *MemoryClient) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Watches returns the number of armed watches on p
func (c *MemoryClient) Watches(p string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dataWatches[p]) + len(c.childWatches[p])
}

func (c *MemoryClient) createLocked(p string, data []byte, mode CreateMode) {
	c.nodes[p] = &memNode{data: slices.Clone(data), mode: mode}
	c.fireLocked(c.dataWatches, p, EventNodeCreated)
	c.fireLocked(c.childWatches, path.Dir(p), EventNodeChildrenChanged)
}

func (c *MemoryClient) mkdirsLocked(p string) {
	if _, ok := c.nodes[p]; ok {
		return
	}
	c.mkdirsLocked(path.Dir(p))
	c.createLocked(p, nil, Persistent)
}

func (c *MemoryClient) childrenLocked(p string) []string {
	prefix := strings.TrimSuffix(p, "/") + "/"
	var children []string
	for np := range c.nodes {
		if np != "/" && strings.HasPrefix(np, prefix) && !strings.Contains(np[len(prefix):], "/") {
			children = append(children, np[len(prefix):])
		}
	}
	slices.Sort(children)
	return children
}

// fireLocked removes the watches of p from the registry and delivers the event to each of them
func (c *MemoryClient) fireLocked(registry map[string][]Watcher, p string, t EventType) {
	watchers := registry[p]
	if len(watchers) == 0 {
		return
	}
	delete(registry, p)
	for _, w := range watchers {
		go w(Event{Type: t, Path: p})
	}
}

func (c *MemoryClient) dropWatchesLocked(cause error) {
	for _, registry := range []map[string][]Watcher{c.dataWatches, c.childWatches} {
		for p, watchers := range registry {
			delete(registry, p)
			for _, w := range watchers {
				go w(Event{Type: EventNotWatching, Path: p, Err: cause})
			}
		}
	}
}
