package cloudstate

import (
	"sync/atomic"

	"github.com/justloop/cloudstate/coord"
	log "github.com/sirupsen/logrus"
)

// logTagReconnect is the logging tag for ReconnectHandler
var logTagReconnect = "cloudstate.ReconnectHandler"

// ReconnectHandler is a session listener that reinstalls the watches when the session comes back
type ReconnectHandler struct {
	// expired is set when the session expired and cleared on the next connect
	expired atomic.Bool

	// onReconnect is the callback when a new session is established after an expiry,
	// all watches of the old session are gone
	onReconnect func()

	// onResume is the callback when the connection is back within the same session
	onResume func()
}

// NewReconnectHandler creates a ReconnectHandler from the two callbacks
func NewReconnectHandler(onReconnect, onResume func()) *ReconnectHandler {
	return &ReconnectHandler{
		onReconnect: onReconnect,
		onResume:    onResume,
	}
}

// Handler to handle session events
func (h *ReconnectHandler) Handler(event coord.SessionEvent) {
	entry := log.WithField("tag", logTagReconnect)
	entry.Debugf("reconnect handler received session event: %s", event.Type)
	switch event.Type {
	case coord.SessionExpired:
		entry.Warn("session expired, watches are lost until a new session is established")
		h.expired.Store(true)
	case coord.SessionDisconnected:
		entry.Info("disconnected from the coordination service")
	case coord.SessionConnected:
		if h.expired.CompareAndSwap(true, false) {
			entry.Info("new session established, reinstalling watches")
			h.onReconnect()
			return
		}
		h.onResume()
	}
}
