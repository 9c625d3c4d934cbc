package cloud

import (
	"github.com/justloop/cloudstate/utils"
	"golang.org/x/exp/slices"
)

// LiveNodes is the set of nodes currently registered as alive.
// It is rebuilt wholesale on every refresh and never mutated.
type LiveNodes struct {
	set    map[string]struct{}
	sorted []string
}

// NewLiveNodes builds a live node set from the children of the live nodes node
func NewLiveNodes(names []string) LiveNodes {
	set := make(map[string]struct{}, len(names))
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := set[n]; ok {
			continue
		}
		set[n] = struct{}{}
		sorted = append(sorted, n)
	}
	slices.Sort(sorted)
	return LiveNodes{set: set, sorted: sorted}
}

// Contains reports whether node is alive
func (l LiveNodes) Contains(node string) bool {
	_, ok := l.set[node]
	return ok
}

// Len returns the number of live nodes
func (l LiveNodes) Len() int {
	return len(l.sorted)
}

// List returns the live nodes in sorted order
func (l LiveNodes) List() []string {
	return slices.Clone(l.sorted)
}

// Equal reports whether both sets hold the same nodes
func (l LiveNodes) Equal(o LiveNodes) bool {
	return slices.Equal(l.sorted, o.sorted)
}

// Checksum is the farmhash fingerprint of the sorted node list
func (l LiveNodes) Checksum() uint32 {
	return utils.GetCheckSumFromNodes(l.sorted)
}
