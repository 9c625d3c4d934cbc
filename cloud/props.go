package cloud

import (
	"encoding/json"
	"strings"

	"golang.org/x/exp/slices"
)

// Property keys of a replica
const (
	BaseURLProp    = "base_url"
	NodeNameProp   = "node_name"
	RolesProp      = "roles"
	StateProp      = "state"
	CoreProp       = "core"
	CollectionProp = "collection"
	ShardIDProp    = "shard_id"
	NumShardsProp  = "numShards"
	LeaderProp     = "leader"
)

// Replica states
const (
	StateActive     = "active"
	StateRecovering = "recovering"
)

// Props are the properties of a single replica. Props are immutable,
// the zero value is an empty property set.
type Props struct {
	m map[string]string
}

// NewProps copies the given map into a new Props
func NewProps(m map[string]string) Props {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Props{m: cp}
}

// Get returns the value of key and whether it is present
func (p Props) Get(key string) (string, bool) {
	v, ok := p.m[key]
	return v, ok
}

// Str returns the value of key, or "" if absent
func (p Props) Str(key string) string {
	return p.m[key]
}

// Has reports whether key is present
func (p Props) Has(key string) bool {
	_, ok := p.m[key]
	return ok
}

// Len returns the number of properties
func (p Props) Len() int {
	return len(p.m)
}

// Keys returns the property keys in sorted order
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p.m))
	for k := range p.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Map returns a copy of the properties
func (p Props) Map() map[string]string {
	return NewProps(p.m).m
}

// Equal reports whether both property sets hold the same keys and values
func (p Props) Equal(o Props) bool {
	if len(p.m) != len(o.m) {
		return false
	}
	for k, v := range p.m {
		if ov, ok := o.m[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (p Props) BaseURL() string    { return p.m[BaseURLProp] }
func (p Props) NodeName() string   { return p.m[NodeNameProp] }
func (p Props) State() string      { return p.m[StateProp] }
func (p Props) Core() string       { return p.m[CoreProp] }
func (p Props) Collection() string { return p.m[CollectionProp] }
func (p Props) ShardID() string    { return p.m[ShardIDProp] }

// Roles returns the comma separated role list as a slice
func (p Props) Roles() []string {
	raw := p.m[RolesProp]
	if raw == "" {
		return nil
	}
	var roles []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// IsLeader reports whether the election subsystem marked this replica as leader.
// The marker counts when present unless it is explicitly "false".
func (p Props) IsLeader() bool {
	v, ok := p.m[LeaderProp]
	return ok && !strings.EqualFold(v, "false")
}

// IsActive reports whether the replica is in the active state
func (p Props) IsActive() bool {
	return p.m[StateProp] == StateActive
}

// CoreURL returns the url of the replica's core, base url and core name joined by a single slash
func (p Props) CoreURL() string {
	base := p.BaseURL()
	core := p.Core()
	if core == "" {
		return base
	}
	if strings.HasSuffix(base, "/") {
		return base + core
	}
	return base + "/" + core
}

// MarshalJSON implements json.Marshaler
func (p Props) MarshalJSON() ([]byte, error) {
	if p.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.m)
}

// String returns the json form of the properties
func (p Props) String() string {
	b, _ := p.MarshalJSON()
	return string(b)
}
