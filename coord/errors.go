package coord

import "errors"

// All the errors a Client operation can fail with
var (
	// ErrConnectionLoss means the connection dropped, the operation may or may not have been applied
	ErrConnectionLoss = errors.New("coord: connection loss")
	// ErrSessionExpired means the session ended, watches and ephemeral nodes are gone
	ErrSessionExpired = errors.New("coord: session expired")
	// ErrNodeExists is returned by Create when the node is already there
	ErrNodeExists = errors.New("coord: node already exists")
	// ErrNoNode means the node does not exist
	ErrNoNode = errors.New("coord: node does not exist")
	// ErrNotEmpty means a node with children cannot be deleted
	ErrNotEmpty = errors.New("coord: node has children")
	// ErrClosed means the client was closed
	ErrClosed = errors.New("coord: client is closed")
	// ErrInterrupted means a blocking wait was cancelled through its context
	ErrInterrupted = errors.New("coord: interrupted")
)

// IsTransient reports whether err belongs to the retryable class
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnectionLoss) || errors.Is(err, ErrSessionExpired)
}
