package coord

import (
	"errors"
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{zk.ErrConnectionClosed, ErrConnectionLoss},
		{zk.ErrNoServer, ErrConnectionLoss},
		{zk.ErrSessionExpired, ErrSessionExpired},
		{zk.ErrSessionMoved, ErrSessionExpired},
		{zk.ErrNodeExists, ErrNodeExists},
		{zk.ErrNoNode, ErrNoNode},
		{zk.ErrNotEmpty, ErrNotEmpty},
		{zk.ErrClosing, ErrClosed},
	}
	for _, c := range cases {
		err := translateError(c.in)
		assert.ErrorIs(t, err, c.want, "%v", c.in)
		assert.ErrorIs(t, err, c.in, "original error is kept in the chain")
	}

	assert.Nil(t, translateError(nil))
	other := errors.New("other")
	assert.Same(t, other, translateError(other))
	assert.True(t, IsTransient(translateError(zk.ErrConnectionClosed)))
	assert.False(t, IsTransient(translateError(zk.ErrBadVersion)))
}

func TestTranslateEvent(t *testing.T) {
	assert.Equal(t, EventNodeDataChanged, translateEvent("/a", zk.Event{Type: zk.EventNodeDataChanged}).Type)
	assert.Equal(t, EventNodeChildrenChanged, translateEvent("/a", zk.Event{Type: zk.EventNodeChildrenChanged}).Type)
	assert.Equal(t, EventNodeCreated, translateEvent("/a", zk.Event{Type: zk.EventNodeCreated}).Type)
	assert.Equal(t, EventNodeDeleted, translateEvent("/a", zk.Event{Type: zk.EventNodeDeleted}).Type)

	ev := translateEvent("/a", zk.Event{Type: zk.EventNotWatching, Err: zk.ErrSessionExpired})
	assert.Equal(t, EventNotWatching, ev.Type)
	assert.Equal(t, "/a", ev.Path)
	assert.ErrorIs(t, ev.Err, ErrSessionExpired)
}

func TestSessionEventOf(t *testing.T) {
	se, ok := sessionEventOf(zk.Event{Type: zk.EventSession, State: zk.StateHasSession})
	assert.True(t, ok)
	assert.Equal(t, SessionConnected, se.Type)

	se, ok = sessionEventOf(zk.Event{Type: zk.EventSession, State: zk.StateExpired})
	assert.True(t, ok)
	assert.Equal(t, SessionExpired, se.Type)

	se, ok = sessionEventOf(zk.Event{Type: zk.EventSession, State: zk.StateDisconnected})
	assert.True(t, ok)
	assert.Equal(t, SessionDisconnected, se.Type)

	_, ok = sessionEventOf(zk.Event{Type: zk.EventSession, State: zk.StateConnecting})
	assert.False(t, ok)
	_, ok = sessionEventOf(zk.Event{Type: zk.EventNodeDataChanged})
	assert.False(t, ok)
}

func TestNewZkClientNoServers(t *testing.T) {
	_, err := NewZkClient(&Config{})
	assert.Error(t, err)
}

func TestParseServers(t *testing.T) {
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, ParseServers(" zk1:2181, ,zk2:2181 "))
	assert.Empty(t, ParseServers(""))
}

func TestDefaultConfig(t *testing.T) {
	c := setDefaultConfig(nil)
	assert.Equal(t, DefaultSessionTimeout, c.SessionTimeout)
	assert.Equal(t, DefaultConnectTimeout, c.ConnectTimeout)
}
