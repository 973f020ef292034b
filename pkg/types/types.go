/*
Package types defines the core data structures shared across beacon's
detection and orchestration pipeline.

These types describe the cluster being observed (Node, Layer, PortSet), the
raw observations taken each tick (NodeClusterView, ClusterSnapshot,
OrdinalSnapshot), and the outcomes the Condition Engine and Restart
Orchestrator produce (HealthEvent, RestartRecord). All types are plain data:
detectors and the orchestrator consume and produce these values directly,
never mutate shared package-level state.
*/
package types

import "time"

// Layer identifies one of the four logical processes running on each node.
type Layer string

const (
	LayerL0Global    Layer = "L0g"
	LayerL0Metagraph Layer = "L0m"
	LayerL1Currency  Layer = "L1c"
	LayerL1Data      Layer = "L1d"
)

// StartupOrder is the fixed partial order layers must start in during a
// full-metagraph restart. Stop order is the reverse of this slice.
var StartupOrder = []Layer{LayerL0Metagraph, LayerL0Global, LayerL1Currency, LayerL1Data}

// StopOrder returns StartupOrder reversed.
func StopOrder() []Layer {
	out := make([]Layer, len(StartupOrder))
	for i, l := range StartupOrder {
		out[len(StartupOrder)-1-i] = l
	}
	return out
}

// PortSet holds the three ports a layer process exposes on a host.
type PortSet struct {
	Public int
	P2P    int
	CLI    int
}

// Node is a cluster member. Identity is ID; Host is the network address.
// Nodes are constructed once at startup from configuration and are
// immutable for the lifetime of the process.
type Node struct {
	ID     string
	Host   string
	Layers map[Layer]PortSet
}

// PeerState mirrors the node-reported state string for a cluster peer or
// for the node's own /node/info response.
type PeerState string

const (
	PeerStateReady     PeerState = "Ready"
	PeerStateObserving PeerState = "Observing"
	PeerStateLoading   PeerState = "Loading"
	PeerStateUnknown   PeerState = "Unknown"
)

// ClusterPeer is one entry returned by GET /cluster/info. Only ID and State
// participate in fork-detection equality; Host/PublicPort/P2PPort are
// carried for diagnostics only.
type ClusterPeer struct {
	ID         string
	State      PeerState
	Host       string
	PublicPort int
	P2PPort    int
}

// NodeClusterView is one node's answer to "who are my peers" for one layer
// at one tick. A view with a non-empty Error has no peers; invariant:
// Error != "" iff len(Peers) == 0.
type NodeClusterView struct {
	Node     string
	Layer    Layer
	Peers    []ClusterPeer
	PolledAt time.Time
	Error    string
}

// Unreachable reports whether this view represents a failed probe.
func (v NodeClusterView) Unreachable() bool {
	return v.Error != ""
}

// ClusterSnapshot is the set of all nodes' views for a single layer taken
// during one tick.
type ClusterSnapshot struct {
	Layer     Layer
	Timestamp time.Time
	Views     []NodeClusterView
}

// OrdinalSnapshot is one node's reported snapshot ordinal for a layer at a
// point in time.
type OrdinalSnapshot struct {
	Node      string
	Layer     Layer
	Ordinal   int64
	Timestamp time.Time
}

// NodeInfo mirrors the GET /node/info response fields the detectors need.
type NodeInfo struct {
	State               PeerState
	ID                  string
	Host                string
	PublicPort          int
	P2PPort             int
	SnapshotOrdinal     int64
	LastSnapshotOrdinal int64
}

// Condition is the closed set of anomalies the Condition Engine can report.
type Condition string

const (
	ConditionHealthy          Condition = "HEALTHY"
	ConditionForkDetected     Condition = "FORK_DETECTED"
	ConditionSnapshotStall    Condition = "SNAPSHOT_STALL"
	ConditionNodeUnreachable  Condition = "NODE_UNREACHABLE"
	ConditionHypergraphHealth Condition = "HYPERGRAPH_HEALTH"
)

// RestartScope is the remediation scope a HealthEvent suggests.
type RestartScope string

const (
	RestartScopeNone           RestartScope = "None"
	RestartScopeIndividualNode RestartScope = "IndividualNode"
	RestartScopeFullLayer      RestartScope = "FullLayer"
	RestartScopeFullMetagraph  RestartScope = "FullMetagraph"
)

// HealthEvent is the single structured anomaly a Condition Engine tick may
// produce. AffectedLayers is populated for conditions that span more than
// one layer (SNAPSHOT_STALL); otherwise Layer alone identifies the scope.
// HealthyNodeIDs, when non-empty, names nodes on Layer the detector that
// raised this event observed as healthy/in-majority at the time — the
// Restart Orchestrator prefers these over NodeIDs when picking a seed for
// an IndividualNode restart (spec §4.7: seed ∈ majorityNodes \ {target}).
type HealthEvent struct {
	ID              string
	Condition       Condition
	Layer           Layer
	AffectedLayers  []Layer
	NodeIDs         []string
	HealthyNodeIDs  []string
	Description     string
	Timestamp       time.Time
	SuggestedAction RestartScope
}

// Outcome is the closed result of a single RestartOrchestrator.Execute call.
type Outcome string

const (
	OutcomeRestarted Outcome = "success"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// RestartRecord is kept in the orchestrator's bounded ring buffer and is
// the sole input to cooldown and rate-limit decisions.
type RestartRecord struct {
	ID         string
	Scope      RestartScope
	Layer      Layer
	NodeIDs    []string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	Detail     string
}
