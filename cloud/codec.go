package cloud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Decoder turns the raw cluster state document into a Snapshot
type Decoder interface {
	// Decode builds a snapshot from the cluster state bytes and the given live nodes.
	// Empty data decodes to a snapshot without collections.
	Decode(data []byte, liveNodes LiveNodes) (*Snapshot, error)
}

// JSONCodec reads and writes the cluster state document:
//
//	{"collection1":{"shard1":{"replica1":{"base_url":"http://host:8983/solr","leader":"true"}}}}
type JSONCodec struct{}

// Decode implements Decoder
func (JSONCodec) Decode(data []byte, liveNodes LiveNodes) (*Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewSnapshot(liveNodes, nil), nil
	}

	var raw map[string]map[string]map[string]map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode cluster state: %w", err)
	}

	collections := make(Topology, len(raw))
	for collection, shards := range raw {
		shardMap := make(map[string]*Slice, len(shards))
		for shard, replicas := range shards {
			props := make(map[string]Props, len(replicas))
			for replica, values := range replicas {
				m := make(map[string]string, len(values))
				for k, v := range values {
					s, err := propString(v)
					if err != nil {
						return nil, fmt.Errorf("decode cluster state: %s/%s/%s %s: %w", collection, shard, replica, k, err)
					}
					m[k] = s
				}
				props[replica] = Props{m: m}
			}
			shardMap[shard] = NewSlice(shard, props)
		}
		collections[collection] = shardMap
	}
	return NewSnapshot(liveNodes, collections), nil
}

// Encode writes the topology of a snapshot as an indented cluster state document
func (JSONCodec) Encode(s *Snapshot) ([]byte, error) {
	out := make(map[string]map[string]map[string]Props, len(s.collections))
	for collection, shards := range s.collections {
		m := make(map[string]map[string]Props, len(shards))
		for id, sl := range shards {
			m[id] = sl.replicas
		}
		out[collection] = m
	}
	return json.MarshalIndent(out, "", "  ")
}

func propString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
