package coord

// EventType is the kind of change a watch fired for
type EventType int

// All the event types a Watcher can receive
const (
	EventNodeCreated EventType = iota
	EventNodeDeleted
	EventNodeDataChanged
	EventNodeChildrenChanged
	// EventNotWatching means the watch was dropped without a change, e.g. the client closed
	EventNotWatching
)

func (t EventType) String() string {
	switch t {
	case EventNodeCreated:
		return "NodeCreated"
	case EventNodeDeleted:
		return "NodeDeleted"
	case EventNodeDataChanged:
		return "NodeDataChanged"
	case EventNodeChildrenChanged:
		return "NodeChildrenChanged"
	case EventNotWatching:
		return "NotWatching"
	default:
		return "Unknown"
	}
}

// Event is delivered to a Watcher once
type Event struct {
	// Type is one of the EventType
	Type EventType
	// Path is the node the watch was registered on
	Path string
	// Err is set for EventNotWatching
	Err error
}

// Watcher is a one-shot callback for a node change
type Watcher func(event Event)

// SessionEventType is the session state change type
type SessionEventType int

// All the session event types
const (
	SessionConnected SessionEventType = iota
	SessionDisconnected
	SessionExpired
)

func (t SessionEventType) String() string {
	switch t {
	case SessionConnected:
		return "Connected"
	case SessionDisconnected:
		return "Disconnected"
	case SessionExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// SessionEvent is a change of the client's session state
type SessionEvent struct {
	Type SessionEventType
}

// SessionHandlerFunc defines a function to handle session events
type SessionHandlerFunc func(event SessionEvent)
