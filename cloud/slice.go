package cloud

import (
	"golang.org/x/exp/slices"
)

// Slice is one shard of a collection: replica name to replica properties
type Slice struct {
	name     string
	replicas map[string]Props
	names    []string
}

// NewSlice builds a slice, the replicas map is copied
func NewSlice(name string, replicas map[string]Props) *Slice {
	s := &Slice{
		name:     name,
		replicas: make(map[string]Props, len(replicas)),
		names:    make([]string, 0, len(replicas)),
	}
	for n, p := range replicas {
		s.replicas[n] = p
		s.names = append(s.names, n)
	}
	slices.Sort(s.names)
	return s
}

// Name returns the shard id
func (s *Slice) Name() string {
	return s.name
}

// ReplicaNames returns the replica names in sorted order
func (s *Slice) ReplicaNames() []string {
	return slices.Clone(s.names)
}

// Replica returns the properties of one replica
func (s *Slice) Replica(name string) (Props, bool) {
	p, ok := s.replicas[name]
	return p, ok
}

// Replicas returns a copy of the replica map
func (s *Slice) Replicas() map[string]Props {
	cp := make(map[string]Props, len(s.replicas))
	for n, p := range s.replicas {
		cp[n] = p
	}
	return cp
}

// Len returns the number of replicas
func (s *Slice) Len() int {
	return len(s.names)
}

// Leader returns the first replica, in name order, carrying the leader marker.
// Only one replica is expected to carry it, this is not enforced here.
func (s *Slice) Leader() (Props, bool) {
	for _, n := range s.names {
		if p := s.replicas[n]; p.IsLeader() {
			return p, true
		}
	}
	return Props{}, false
}

// Equal reports whether both slices have the same replicas and properties
func (s *Slice) Equal(o *Slice) bool {
	if s.name != o.name || !slices.Equal(s.names, o.names) {
		return false
	}
	for n, p := range s.replicas {
		if !p.Equal(o.replicas[n]) {
			return false
		}
	}
	return true
}
