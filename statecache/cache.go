// Package statecache keeps the last published cluster state on local disk, so the
// state a reader last saw can be inspected without a coordination service.
package statecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/justloop/cloudstate/cloud"
	log "github.com/sirupsen/logrus"
)

var logTag = "cloudstate.statecache"

const (
	// CurrentVersion is the schema version of the stored record
	CurrentVersion = 1

	snapshotKey          = "snapshot"
	saveDebounceDuration = 100 * time.Millisecond
)

// ErrNotFound means nothing was saved yet
var ErrNotFound = errors.New("statecache: no saved snapshot")

// Provider gives the snapshot to persist
type Provider interface {
	CurrentSnapshot() *cloud.Snapshot
}

// record is the stored form of a snapshot
type record struct {
	Version      int             `json:"version"`
	SavedAt      time.Time       `json:"saved_at"`
	LiveNodes    []string        `json:"live_nodes"`
	ClusterState json.RawMessage `json:"cluster_state"`
}

// Cache stores the latest snapshot in badger, saves are debounced
type Cache struct {
	db    *badger.DB
	codec cloud.JSONCodec

	provider atomic.Pointer[Provider]
	dirty    atomic.Bool
	mu       sync.Mutex

	saveCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open opens (or creates) the cache under dir and starts the save loop
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(log.WithField("tag", logTag))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open state cache: %w", err)
	}

	c := &Cache{
		db:     db,
		saveCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.saveLoop()
	return c, nil
}

// SetProvider sets where snapshots are read from on save
func (c *Cache) SetProvider(provider Provider) {
	c.provider.Store(&provider)
}

func (c *Cache) saveLoop() {
	defer c.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-c.saveCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(saveDebounceDuration)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			timer = nil
			if c.dirty.Load() {
				if err := c.save(); err != nil {
					log.WithField("tag", logTag).Warnf("state cache save error: %s", err)
				}
			}

		case <-c.doneCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// MarkDirty schedules a save of the provider's current snapshot
func (c *Cache) MarkDirty() {
	if c.dirty.CompareAndSwap(false, true) {
		select {
		case c.saveCh <- struct{}{}:
		default:
		}
	}
}

// Save writes the provider's current snapshot now
func (c *Cache) Save() error {
	return c.save()
}

func (c *Cache) save() error {
	p := c.provider.Load()
	if p == nil {
		return errors.New("statecache: provider not set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// cleared first so a publish racing this save marks the cache again
	c.dirty.Store(false)
	snapshot := (*p).CurrentSnapshot()
	if snapshot == nil {
		return nil
	}
	state, err := c.codec.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := json.Marshal(record{
		Version:      CurrentVersion,
		SavedAt:      time.Now().UTC(),
		LiveNodes:    snapshot.LiveNodes().List(),
		ClusterState: state,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), data)
	})
}

// Load returns the last saved snapshot and when it was saved
func (c *Cache) Load() (*cloud.Snapshot, time.Time, error) {
	var rec record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read state cache: %w", err)
	}
	if rec.Version != CurrentVersion {
		return nil, time.Time{}, fmt.Errorf("unsupported state cache version: %d", rec.Version)
	}

	snapshot, err := c.codec.Decode(rec.ClusterState, cloud.NewLiveNodes(rec.LiveNodes))
	if err != nil {
		return nil, time.Time{}, err
	}
	return snapshot, rec.SavedAt, nil
}

// Close stops the save loop, writes a pending save and closes the database.
// It is safe to call multiple times.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.doneCh)
		c.wg.Wait()

		if c.dirty.Load() && c.provider.Load() != nil {
			err = c.save()
		}
		if cerr := c.db.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
