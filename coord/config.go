package coord

import (
	"strings"
	"time"

	"github.com/justloop/cloudstate/utils"
)

const (
	// DefaultSessionTimeout is the default session timeout negotiated with the service
	DefaultSessionTimeout = 10 * time.Second
	// DefaultConnectTimeout is how long NewZkClient waits for the first session
	DefaultConnectTimeout = 15 * time.Second
	// DefaultRetryCount is the default number of attempts of the Executor
	DefaultRetryCount = 10
	// DefaultRetryDelay is the default backoff unit of the Executor
	DefaultRetryDelay = 1500 * time.Millisecond
)

// Config is the configuration of the ZooKeeper client
type Config struct {
	// Servers is the list of servers to connect to, [address:port]
	Servers []string `json:"servers"`
	// SessionTimeout is the session timeout, optional, default 10s
	SessionTimeout time.Duration `json:"sessionTimeout"`
	// ConnectTimeout bounds the wait for the first session, optional, default 15s
	ConnectTimeout time.Duration `json:"connectTimeout"`
	// OnSession is invoked on every session state change, optional
	OnSession SessionHandlerFunc `json:"-"`
}

// ParseServers splits a comma separated server list, e.g. "zk1:2181,zk2:2181"
func ParseServers(s string) []string {
	var servers []string
	for _, server := range strings.Split(s, ",") {
		if server = strings.TrimSpace(server); server != "" {
			servers = append(servers, server)
		}
	}
	return servers
}

// setDefaultConfig fills the unset fields of the config
func setDefaultConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	config.SessionTimeout = utils.SelectDuration(config.SessionTimeout, DefaultSessionTimeout)
	config.ConnectTimeout = utils.SelectDuration(config.ConnectTimeout, DefaultConnectTimeout)
	return config
}
