package coord

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/justloop/cloudstate/utils"
	log "github.com/sirupsen/logrus"
)

var (
	// logTag is the logging tag for the ZooKeeper client
	logTag = "coord.zk"
)

// ZkClient is the Client backed by a ZooKeeper ensemble
// url: https://github.com/go-zookeeper/zk
type ZkClient struct {
	config *Config
	conn   *zk.Conn

	handlersMu sync.RWMutex
	handlers   []SessionHandlerFunc

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewZkClient connects to the ensemble and waits until a session is established,
// at most config.ConnectTimeout.
func NewZkClient(config *Config) (*ZkClient, error) {
	config = setDefaultConfig(config)
	if len(config.Servers) == 0 {
		return nil, errors.New("coord: no servers configured")
	}

	conn, events, err := zk.Connect(config.Servers, config.SessionTimeout,
		zk.WithLogger(log.WithField("tag", logTag)))
	if err != nil {
		return nil, translateError(err)
	}
	c := &ZkClient{
		config: config,
		conn:   conn,
		done:   make(chan struct{}),
	}
	if config.OnSession != nil {
		c.handlers = append(c.handlers, config.OnSession)
	}

	connected := make(chan struct{})
	c.wg.Add(1)
	go c.sessionLoop(events, connected)

	timer := time.NewTimer(config.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-connected:
		log.WithField("tag", logTag).Infof("connected to %v", config.Servers)
		return c, nil
	case <-timer.C:
		_ = c.Close()
		return nil, fmt.Errorf("no session with %v within %s: %w", config.Servers, config.ConnectTimeout, ErrConnectionLoss)
	}
}

// sessionLoop consumes the session events of the connection, the first established
// session closes connected.
func (c *ZkClient) sessionLoop(events <-chan zk.Event, connected chan struct{}) {
	defer c.wg.Done()
	defer utils.DoPanicRecovery("ZkClient.sessionLoop")
	var once sync.Once
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			se, ok := sessionEventOf(ev)
			if !ok {
				continue
			}
			if se.Type == SessionConnected {
				once.Do(func() { close(connected) })
			}
			log.WithField("tag", logTag).Debugf("session event: %s", se.Type)
			c.handlersMu.RLock()
			handlers := c.handlers
			c.handlersMu.RUnlock()
			for _, h := range handlers {
				h(se)
			}
		}
	}
}

// AddSessionHandler implements SessionNotifier
func (c *ZkClient) AddSessionHandler(handler SessionHandlerFunc) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Exists implements Client
func (c *ZkClient) Exists(path string) (bool, error) {
	ok, _, err := c.conn.Exists(path)
	return ok, translateError(err)
}

// Create implements Client
func (c *ZkClient) Create(path string, data []byte, mode CreateMode) error {
	var flags int32
	if mode == Ephemeral {
		flags = zk.FlagEphemeral
	}
	_, err := c.conn.Create(path, data, flags, zk.WorldACL(zk.PermAll))
	return translateError(err)
}

// Children implements Client
func (c *ZkClient) Children(path string, watcher Watcher) ([]string, error) {
	if watcher == nil {
		children, _, err := c.conn.Children(path)
		return children, translateError(err)
	}
	children, _, ch, err := c.conn.ChildrenW(path)
	if err != nil {
		return nil, translateError(err)
	}
	c.bridge(path, ch, watcher)
	return children, nil
}

// Data implements Client
func (c *ZkClient) Data(path string, watcher Watcher) ([]byte, error) {
	if watcher == nil {
		data, _, err := c.conn.Get(path)
		return data, translateError(err)
	}
	data, _, ch, err := c.conn.GetW(path)
	if err != nil {
		return nil, translateError(err)
	}
	c.bridge(path, ch, watcher)
	return data, nil
}

// Close implements Client, it is safe to call multiple times
func (c *ZkClient) Close() error {
	c.closeOnce.Do(func() {
		log.WithField("tag", logTag).Info("closing session")
		c.conn.Close()
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

// bridge delivers the single event of a zk watch channel to watcher on its own goroutine
func (c *ZkClient) bridge(path string, ch <-chan zk.Event, watcher Watcher) {
	go func() {
		defer utils.DoPanicRecovery("ZkClient.watch " + path)
		ev, ok := <-ch
		if !ok {
			watcher(Event{Type: EventNotWatching, Path: path, Err: ErrClosed})
			return
		}
		watcher(translateEvent(path, ev))
	}()
}

func translateEvent(path string, ev zk.Event) Event {
	event := Event{Path: path}
	switch ev.Type {
	case zk.EventNodeCreated:
		event.Type = EventNodeCreated
	case zk.EventNodeDeleted:
		event.Type = EventNodeDeleted
	case zk.EventNodeDataChanged:
		event.Type = EventNodeDataChanged
	case zk.EventNodeChildrenChanged:
		event.Type = EventNodeChildrenChanged
	default:
		event.Type = EventNotWatching
		event.Err = translateError(ev.Err)
		if event.Err == nil {
			event.Err = ErrConnectionLoss
		}
	}
	return event
}

func sessionEventOf(ev zk.Event) (SessionEvent, bool) {
	if ev.Type != zk.EventSession {
		return SessionEvent{}, false
	}
	switch ev.State {
	case zk.StateHasSession:
		return SessionEvent{Type: SessionConnected}, true
	case zk.StateDisconnected:
		return SessionEvent{Type: SessionDisconnected}, true
	case zk.StateExpired:
		return SessionEvent{Type: SessionExpired}, true
	}
	return SessionEvent{}, false
}

// translateError maps zk library errors to the coord errors, keeping the original in the chain
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zk.ErrConnectionClosed), errors.Is(err, zk.ErrNoServer):
		return fmt.Errorf("%w: %w", ErrConnectionLoss, err)
	case errors.Is(err, zk.ErrSessionExpired), errors.Is(err, zk.ErrSessionMoved):
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	case errors.Is(err, zk.ErrNodeExists):
		return fmt.Errorf("%w: %w", ErrNodeExists, err)
	case errors.Is(err, zk.ErrNoNode):
		return fmt.Errorf("%w: %w", ErrNoNode, err)
	case errors.Is(err, zk.ErrNotEmpty):
		return fmt.Errorf("%w: %w", ErrNotEmpty, err)
	case errors.Is(err, zk.ErrClosing):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
