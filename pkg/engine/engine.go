/*
Package engine implements the Condition Engine (spec §4.6): it runs the
fork, stall, and unhealthy-node detectors in priority order each tick and
returns at most one actionable HealthEvent, stopping at the first
condition found. Forks must be resolved before stalls are diagnosed, and
stalls before per-node health is interpreted — a fork can otherwise
masquerade as a stall.

Detection here is read-only: the engine never calls the restart
orchestrator or the notifier directly. It hands its HealthEvent back to
whoever owns the tick loop (pkg/monitor), grounded on the teacher's
reconciler pattern of one package per concern with an explicit owner
above it.
*/
package engine

import (
	"context"
	"time"

	"github.com/cuemby/beacon/internal/metrics"
	"github.com/cuemby/beacon/pkg/forkdetector"
	"github.com/cuemby/beacon/pkg/stalltracker"
	"github.com/cuemby/beacon/pkg/types"
)

// forkCheckOrder is the fixed per-tick fork-check priority from spec §4.3:
// the first forked layer wins and later layers are not probed this tick.
var forkCheckOrder = []types.Layer{types.LayerL0Metagraph, types.LayerL1Currency, types.LayerL1Data}

// unhealthyCheckLayers is the full layer set the unhealthy-node detector
// inspects (spec §4.5).
var unhealthyCheckLayers = []types.Layer{types.LayerL0Global, types.LayerL0Metagraph, types.LayerL1Currency, types.LayerL1Data}

// clusterStallNode is the synthetic node name the Stall Tracker keys the
// cluster-wide L0m liveness signal under (spec §4.4 step 2).
const clusterStallNode = "⟂cluster"

// Engine owns the detector chain for one Monitor Loop.
type Engine struct {
	Nodes          []types.Node
	Client         NodeAPI
	Tracker        *stalltracker.Tracker
	StallThreshold time.Duration
	NewID          func() string

	// LastClusterSnapshots and LastOrdinalSnapshots hold the views this
	// Engine observed during its most recent Tick, for pkg/monitor to
	// persist through an optional snapshotstore.Source (spec §1's
	// pluggable SnapshotSource). They are overwritten every tick and are
	// not safe for concurrent reads while Tick is running.
	LastClusterSnapshots []types.ClusterSnapshot
	LastOrdinalSnapshots []types.OrdinalSnapshot
}

// StallTrackerKey is the synthetic (node, layer) key the cluster-wide L0m
// liveness signal is tracked under (spec §4.4 step 2), exported so
// pkg/monitor can warm-start the tracker from a persisted OrdinalSnapshot
// before the first tick.
func StallTrackerKey() stalltracker.Key {
	return stalltracker.Key{Node: clusterStallNode, Layer: types.LayerL0Metagraph}
}

// Tick runs the detector chain once and returns the single actionable
// event for this tick, if any.
func (e *Engine) Tick(ctx context.Context, now time.Time) (types.HealthEvent, bool) {
	e.LastOrdinalSnapshots = e.LastOrdinalSnapshots[:0]
	if event, ok := e.checkForks(ctx, now); ok {
		return event, true
	}
	if event, ok := e.checkStall(ctx, now); ok {
		return event, true
	}
	if event, ok := e.checkUnhealthy(ctx, now); ok {
		return event, true
	}
	return types.HealthEvent{}, false
}

// checkForks probes cluster views layer by layer in forkCheckOrder and
// returns the first forked (or all-unreachable) layer's event.
func (e *Engine) checkForks(ctx context.Context, now time.Time) (types.HealthEvent, bool) {
	e.LastClusterSnapshots = e.LastClusterSnapshots[:0]

	for _, layer := range forkCheckOrder {
		nodesOnLayer := e.nodesForLayer(layer)
		if len(nodesOnLayer) == 0 {
			continue
		}

		views := make([]types.NodeClusterView, len(nodesOnLayer))
		fanOut(len(nodesOnLayer), func(i int) {
			n := nodesOnLayer[i]
			ports := n.Layers[layer]
			peers, errStr := e.Client.GetCluster(ctx, n.Host, ports.Public)
			views[i] = types.NodeClusterView{
				Node:     n.ID,
				Layer:    layer,
				Peers:    peers,
				PolledAt: now,
				Error:    errStr,
			}
		})

		snap := types.ClusterSnapshot{Layer: layer, Timestamp: now, Views: views}
		e.LastClusterSnapshots = append(e.LastClusterSnapshots, snap)

		result := forkdetector.Detect(snap)
		if event, ok := forkdetector.ToEvent(layer, result, now, e.NewID); ok {
			return event, true
		}
	}
	return types.HealthEvent{}, false
}

// checkStall polls L0m's ordinal from each configured node in order and
// feeds the first non-negative value into the synthetic cluster key
// (spec §4.4).
func (e *Engine) checkStall(ctx context.Context, now time.Time) (types.HealthEvent, bool) {
	nodesOnLayer := e.nodesForLayer(types.LayerL0Metagraph)

	ordinals := make([]int64, len(nodesOnLayer))
	fanOut(len(nodesOnLayer), func(i int) {
		n := nodesOnLayer[i]
		ports := n.Layers[types.LayerL0Metagraph]
		ordinals[i] = e.Client.GetOrdinal(ctx, n.Host, ports.Public, types.LayerL0Metagraph)
	})

	e.LastOrdinalSnapshots = e.LastOrdinalSnapshots[:0]
	var canonical int64 = -1
	for i, n := range nodesOnLayer {
		if ordinals[i] < 0 {
			continue
		}
		e.LastOrdinalSnapshots = append(e.LastOrdinalSnapshots, types.OrdinalSnapshot{
			Node: n.ID, Layer: types.LayerL0Metagraph, Ordinal: ordinals[i], Timestamp: now,
		})
		if canonical < 0 {
			canonical = ordinals[i]
		}
	}
	if canonical < 0 {
		// No node answered: this is an unreachable-nodes problem, not a stall.
		return types.HealthEvent{}, false
	}

	key := stalltracker.Key{Node: clusterStallNode, Layer: types.LayerL0Metagraph}
	e.Tracker.Update(key, canonical, now)

	if stale, ok := e.Tracker.StaleSecs(key, now); ok {
		metrics.StallSeconds.WithLabelValues(key.Node, string(key.Layer)).Set(stale)
	}

	if !e.Tracker.ClusterStalled(types.LayerL0Metagraph, now, e.StallThreshold) {
		return types.HealthEvent{}, false
	}

	allNodeIDs := make([]string, 0, len(e.Nodes))
	for _, n := range e.Nodes {
		allNodeIDs = append(allNodeIDs, n.ID)
	}

	return types.HealthEvent{
		ID:              e.NewID(),
		Condition:       types.ConditionSnapshotStall,
		Layer:           types.LayerL0Metagraph,
		AffectedLayers:  []types.Layer{types.LayerL0Metagraph, types.LayerL1Currency, types.LayerL1Data},
		NodeIDs:         allNodeIDs,
		Description:     "L0m ordinal has not advanced on any node past the stall threshold",
		Timestamp:       now,
		SuggestedAction: types.RestartScopeFullMetagraph,
	}, true
}

func (e *Engine) checkUnhealthy(ctx context.Context, now time.Time) (types.HealthEvent, bool) {
	statuses := detectUnhealthyNodes(ctx, e.Client, e.Nodes, unhealthyCheckLayers)
	return unhealthyEvent(statuses, now, e.NewID)
}

func (e *Engine) nodesForLayer(layer types.Layer) []types.Node {
	var out []types.Node
	for _, n := range e.Nodes {
		if _, ok := n.Layers[layer]; ok {
			out = append(out, n)
		}
	}
	return out
}
