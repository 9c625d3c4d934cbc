package cloudstate

import (
	"time"

	"github.com/justloop/cloudstate/cloud"
	"github.com/justloop/cloudstate/coord"
	"github.com/justloop/cloudstate/utils"
)

const (
	// DefaultUpdateDelay is the default coalescing delay of ScheduleRefresh
	DefaultUpdateDelay = 5000 * time.Millisecond
	// DefaultLeaderPollInterval is the default wait between two leader lookups
	DefaultLeaderPollInterval = 500 * time.Millisecond
	// DefaultLeaderPollAttempts is the default number of leader lookups, ~60s with the default interval
	DefaultLeaderPollAttempts = 120
)

// Config is the configuration of a Reader
type Config struct {

	// UpdateDelay is how long ScheduleRefresh waits before refreshing, optional, default 5s
	UpdateDelay time.Duration

	// LeaderPollInterval is the wait between two leader lookups, optional, default 500ms
	LeaderPollInterval time.Duration

	// LeaderPollAttempts is the number of leader lookups before giving up, optional, default 120
	LeaderPollAttempts int

	// RetryCount is the number of attempts of a coordination operation, optional, default 10
	RetryCount int

	// RetryDelay is the backoff unit between attempts, optional, default 1.5s
	RetryDelay time.Duration

	// Decoder decodes the cluster state document, optional, default cloud.JSONCodec
	Decoder cloud.Decoder

	// CoordConfig is used by NewWithServers to create the ZooKeeper client
	CoordConfig *coord.Config

	// CacheDir enables the on-disk last known state cache when set, optional
	CacheDir string

	// OnWatchError is invoked when a watch callback fails with a non transient error,
	// optional, default logs the error
	OnWatchError func(watch string, err error)
}

// setDefaultConfig sets the default values
func setDefaultConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	config.UpdateDelay = utils.SelectDuration(config.UpdateDelay, DefaultUpdateDelay)
	config.LeaderPollInterval = utils.SelectDuration(config.LeaderPollInterval, DefaultLeaderPollInterval)
	config.LeaderPollAttempts = utils.SelectInt(config.LeaderPollAttempts, DefaultLeaderPollAttempts)
	config.RetryCount = utils.SelectInt(config.RetryCount, coord.DefaultRetryCount)
	config.RetryDelay = utils.SelectDuration(config.RetryDelay, coord.DefaultRetryDelay)
	if config.Decoder == nil {
		config.Decoder = cloud.JSONCodec{}
	}
	if config.OnWatchError == nil {
		config.OnWatchError = func(watch string, err error) {
			logger().Errorf("%s watch failed: %s", watch, err)
		}
	}
	return config
}
