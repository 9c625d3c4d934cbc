package cloud

import (
	"reflect"

	"golang.org/x/exp/slices"
)

// Topology maps collection name to shard id to slice.
// A Topology owned by a Snapshot is never modified.
type Topology map[string]map[string]*Slice

// Snapshot is an immutable view of the cluster: live nodes plus topology
type Snapshot struct {
	liveNodes   LiveNodes
	collections Topology
}

// NewSnapshot builds a snapshot from live nodes and a topology.
// The topology must not be modified by the caller afterwards.
func NewSnapshot(liveNodes LiveNodes, collections Topology) *Snapshot {
	if collections == nil {
		collections = Topology{}
	}
	return &Snapshot{
		liveNodes:   liveNodes,
		collections: collections,
	}
}

// EmptySnapshot returns a snapshot with no live nodes and no collections
func EmptySnapshot() *Snapshot {
	return NewSnapshot(NewLiveNodes(nil), nil)
}

// WithLiveNodes returns a new snapshot sharing this snapshot's topology with a new live node set
func (s *Snapshot) WithLiveNodes(liveNodes LiveNodes) *Snapshot {
	return &Snapshot{
		liveNodes:   liveNodes,
		collections: s.collections,
	}
}

// LiveNodes returns the live node set
func (s *Snapshot) LiveNodes() LiveNodes {
	return s.liveNodes
}

// IsLive reports whether node is currently alive
func (s *Snapshot) IsLive(node string) bool {
	return s.liveNodes.Contains(node)
}

// Collections returns the collection names in sorted order
func (s *Snapshot) Collections() []string {
	names := make([]string, 0, len(s.collections))
	for n := range s.collections {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// HasCollection reports whether the collection exists
func (s *Snapshot) HasCollection(collection string) bool {
	_, ok := s.collections[collection]
	return ok
}

// Slices returns the slices of a collection keyed by shard id, nil if the collection is unknown
func (s *Snapshot) Slices(collection string) map[string]*Slice {
	shards, ok := s.collections[collection]
	if !ok {
		return nil
	}
	cp := make(map[string]*Slice, len(shards))
	for id, sl := range shards {
		cp[id] = sl
	}
	return cp
}

// Slice returns one shard of a collection
func (s *Snapshot) Slice(collection, shard string) (*Slice, bool) {
	sl, ok := s.collections[collection][shard]
	return sl, ok
}

// Leader returns the leader replica of a shard if one is marked
func (s *Snapshot) Leader(collection, shard string) (Props, bool) {
	sl, ok := s.Slice(collection, shard)
	if !ok {
		return Props{}, false
	}
	return sl.Leader()
}

// SharesTopology reports whether both snapshots reference the same topology
func (s *Snapshot) SharesTopology(o *Snapshot) bool {
	return reflect.ValueOf(s.collections).Pointer() == reflect.ValueOf(o.collections).Pointer()
}

// Equal reports whether both snapshots hold the same live nodes and topology content
func (s *Snapshot) Equal(o *Snapshot) bool {
	if !s.liveNodes.Equal(o.liveNodes) || len(s.collections) != len(o.collections) {
		return false
	}
	for name, shards := range s.collections {
		other, ok := o.collections[name]
		if !ok || len(other) != len(shards) {
			return false
		}
		for id, sl := range shards {
			osl, ok := other[id]
			if !ok || !sl.Equal(osl) {
				return false
			}
		}
	}
	return true
}
