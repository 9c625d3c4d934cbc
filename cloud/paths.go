/*
Package cloud is the immutable, in-memory model of the cluster layout: which
collections exist, how they are split into slices (shards), which replicas
serve each slice and which nodes are alive.

A Snapshot is never modified after it is built. Refreshing the cluster state
always means building a new Snapshot, either by decoding the cluster state
document together with a live node set, or by attaching a new live node set
to the topology of a previous Snapshot.
*/
package cloud

// Well known nodes on the coordination service
const (
	// LiveNodesNode holds one ephemeral child per live node
	LiveNodesNode = "/live_nodes"
	// ClusterStateNode holds the cluster state document
	ClusterStateNode = "/clusterstate.json"
)
