package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

// nodeLayerStatus is one (node, layer) observation from the unhealthy node
// detector (spec §4.5).
type nodeLayerStatus struct {
	Node        string
	Layer       types.Layer
	Unreachable bool
	State       types.PeerState
}

func (s nodeLayerStatus) unhealthy() bool {
	if s.Unreachable {
		return true
	}
	return s.State != types.PeerStateReady && s.State != types.PeerStateObserving
}

// detectUnhealthyNodes probes /node/info for every (node, layer) pair the
// node is configured for and classifies each as healthy or unhealthy.
func detectUnhealthyNodes(ctx context.Context, client NodeAPI, nodes []types.Node, layers []types.Layer) []nodeLayerStatus {
	type pair struct {
		node  types.Node
		layer types.Layer
	}
	var pairs []pair
	for _, n := range nodes {
		for _, l := range layers {
			if _, ok := n.Layers[l]; ok {
				pairs = append(pairs, pair{node: n, layer: l})
			}
		}
	}

	statuses := make([]nodeLayerStatus, len(pairs))
	fanOut(len(pairs), func(i int) {
		p := pairs[i]
		ports := p.node.Layers[p.layer]
		info := client.GetNodeInfo(ctx, p.node.Host, ports.Public)
		if info == nil {
			statuses[i] = nodeLayerStatus{Node: p.node.ID, Layer: p.layer, Unreachable: true}
			return
		}
		statuses[i] = nodeLayerStatus{Node: p.node.ID, Layer: p.layer, State: info.State}
	})
	return statuses
}

// unhealthyEvent reduces a slice of nodeLayerStatus to a HealthEvent per
// spec §4.5's proportional scope rule, or (zero, false) if every pair is
// healthy.
func unhealthyEvent(statuses []nodeLayerStatus, now time.Time, newID func() string) (types.HealthEvent, bool) {
	var bad []nodeLayerStatus
	for _, s := range statuses {
		if s.unhealthy() {
			bad = append(bad, s)
		}
	}
	if len(bad) == 0 {
		return types.HealthEvent{}, false
	}

	layerTotal := make(map[types.Layer]int)
	healthyPerLayer := make(map[types.Layer][]string)
	for _, s := range statuses {
		layerTotal[s.Layer]++
		if !s.unhealthy() {
			healthyPerLayer[s.Layer] = append(healthyPerLayer[s.Layer], s.Node)
		}
	}

	badPerLayer := make(map[types.Layer][]string)
	for _, s := range bad {
		badPerLayer[s.Layer] = append(badPerLayer[s.Layer], s.Node)
	}

	// worstLayer is the failing layer with the most bad pairs, ties broken
	// by layer name so the choice is deterministic across ticks.
	layers := make([]types.Layer, 0, len(badPerLayer))
	for l := range badPerLayer {
		layers = append(layers, l)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
	worstLayer := layers[0]
	worstCount := -1
	for _, l := range layers {
		if len(badPerLayer[l]) > worstCount {
			worstCount = len(badPerLayer[l])
			worstLayer = l
		}
	}

	total := len(statuses)
	action := types.RestartScopeIndividualNode
	affectedLayers := []types.Layer{}
	// The IndividualNode case targets only the worst-hit layer, so its
	// NodeIDs must be the nodes bad on that one layer, not every bad node
	// across every layer (those nodes may not even be configured for it).
	nodeIDs := append([]string{}, badPerLayer[worstLayer]...)
	sort.Strings(nodeIDs)

	if len(bad) >= total/2+total%2 {
		// At least half of all pairs are down: escalate per layer.
		majorityDownLayers := 0
		for _, l := range layers {
			if len(badPerLayer[l]) >= layerTotal[l]/2+layerTotal[l]%2 {
				majorityDownLayers++
				affectedLayers = append(affectedLayers, l)
			}
		}
		if majorityDownLayers >= 2 {
			action = types.RestartScopeFullMetagraph
		} else {
			action = types.RestartScopeFullLayer
			affectedLayers = []types.Layer{worstLayer}
		}

		nodeSet := make(map[string]struct{})
		for _, s := range bad {
			nodeSet[s.Node] = struct{}{}
		}
		nodeIDs = make([]string, 0, len(nodeSet))
		for id := range nodeSet {
			nodeIDs = append(nodeIDs, id)
		}
		sort.Strings(nodeIDs)
	}

	sort.Slice(affectedLayers, func(i, j int) bool { return affectedLayers[i] < affectedLayers[j] })

	healthyIDs := append([]string{}, healthyPerLayer[worstLayer]...)
	sort.Strings(healthyIDs)

	return types.HealthEvent{
		ID:              newID(),
		Condition:       types.ConditionNodeUnreachable,
		Layer:           worstLayer,
		AffectedLayers:  affectedLayers,
		NodeIDs:         nodeIDs,
		HealthyNodeIDs:  healthyIDs,
		Description:     fmt.Sprintf("%d/%d (node,layer) pairs unhealthy: %v", len(bad), total, nodeIDs),
		Timestamp:       now,
		SuggestedAction: action,
	}, true
}
