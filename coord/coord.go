/*
Package coord is the thin layer over the coordination service (ZooKeeper or anything with the same model)

It exposes the handful of primitive operations the state reader needs: existence check,
node creation, children listing and data reads. Reads can register a one-shot Watcher,
which fires once on the next change and then has to be registered again.

Operations fail with ErrConnectionLoss or ErrSessionExpired for transient conditions,
these are retried by the Executor. Everything else is returned as is.
*/
package coord

// CreateMode is the lifetime of a created node
type CreateMode int

const (
	// Persistent nodes survive the session that created them
	Persistent CreateMode = iota
	// Ephemeral nodes are removed when the session that created them ends
	Ephemeral
)

// Client is the set of coordination service operations the state reader consumes
type Client interface {
	// Exists reports whether a node exists at path
	Exists(path string) (bool, error)
	// Create creates a node, fails with ErrNodeExists if it is already there
	Create(path string, data []byte, mode CreateMode) error
	// Children lists the child names of path, registering watcher when not nil
	Children(path string, watcher Watcher) ([]string, error)
	// Data returns the data of path, registering watcher when not nil
	Data(path string, watcher Watcher) ([]byte, error)
	// Close will close the session to the coordination service
	Close() error
}

// SessionNotifier is implemented by clients that report session state changes
type SessionNotifier interface {
	// AddSessionHandler adds a handler invoked on every session state change
	AddSessionHandler(handler SessionHandlerFunc)
}
