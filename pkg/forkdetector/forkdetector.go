/*
Package forkdetector reduces one layer's ClusterSnapshot to a
majority/minority/unreachable classification (spec §4.3).

Detection is pure: Detect takes a snapshot and returns a Result, touching no shared state and performing no I/O. The Condition
Engine is responsible for sequencing which layers get checked and in what
order.
*/
package forkdetector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

const emptyKey = "⟂EMPTY"

// Result is the outcome of reducing one ClusterSnapshot.
type Result struct {
	Forked           bool
	MajorityKey      string
	MajorityNodes    []string
	MinorityNodes    []string
	UnreachableNodes []string
	SuggestedAction  types.RestartScope
}

// canonicalKey computes the grouping key for a healthy view: peer IDs
// sorted ascending and joined, so permutations of the same peer set
// collapse to the same key (spec §8's clusterKey round-trip property).
func canonicalKey(peers []types.ClusterPeer) string {
	if len(peers) == 0 {
		return emptyKey
	}
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// Detect classifies the views in snap into majority/minority/unreachable
// groups and decides whether a fork exists and what scope to suggest.
func Detect(snap types.ClusterSnapshot) Result {
	groups := make(map[string][]string) // key -> node IDs
	var unreachable []string

	for _, v := range snap.Views {
		if v.Unreachable() {
			unreachable = append(unreachable, v.Node)
			continue
		}
		key := canonicalKey(v.Peers)
		groups[key] = append(groups[key], v.Node)
	}

	if len(groups) == 0 {
		// Every view is an error view: no majority can be identified at all.
		return Result{
			UnreachableNodes: unreachable,
			SuggestedAction:  types.RestartScopeNone,
		}
	}

	majorityKey := argmaxKey(groups)
	majorityNodes := groups[majorityKey]

	var minorityNodes []string
	for key, nodes := range groups {
		if key == majorityKey {
			continue
		}
		minorityNodes = append(minorityNodes, nodes...)
	}
	sort.Strings(minorityNodes)

	if len(minorityNodes) == 0 {
		return Result{
			MajorityKey:      majorityKey,
			MajorityNodes:    majorityNodes,
			UnreachableNodes: unreachable,
			SuggestedAction:  types.RestartScopeNone,
		}
	}

	action := types.RestartScopeIndividualNode
	if len(minorityNodes) >= len(majorityNodes) {
		action = types.RestartScopeFullLayer
	}

	return Result{
		Forked:           true,
		MajorityKey:      majorityKey,
		MajorityNodes:    majorityNodes,
		MinorityNodes:    minorityNodes,
		UnreachableNodes: unreachable,
		SuggestedAction:  action,
	}
}

// argmaxKey returns the key with the largest group, breaking ties by
// lexicographic key order so the choice is deterministic across ticks.
func argmaxKey(groups map[string][]string) string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if len(groups[k]) > len(groups[best]) {
			best = k
		}
	}
	return best
}

// ToEvent converts a Result into a HealthEvent for the given layer and
// tick timestamp. Returns (event, true) only when the result is
// actionable per spec §4.3: a genuine fork, or an all-unreachable layer.
func ToEvent(layer types.Layer, r Result, now time.Time, newID func() string) (types.HealthEvent, bool) {
	switch {
	case r.Forked:
		return types.HealthEvent{
			ID:              newID(),
			Condition:       types.ConditionForkDetected,
			Layer:           layer,
			NodeIDs:         r.MinorityNodes,
			HealthyNodeIDs:  r.MajorityNodes,
			Description:     fmt.Sprintf("layer %s split: majority %v, minority %v", layer, r.MajorityNodes, r.MinorityNodes),
			Timestamp:       now,
			SuggestedAction: r.SuggestedAction,
		}, true
	case len(r.MajorityNodes) == 0 && len(r.UnreachableNodes) > 0:
		return types.HealthEvent{
			ID:              newID(),
			Condition:       types.ConditionNodeUnreachable,
			Layer:           layer,
			NodeIDs:         r.UnreachableNodes,
			Description:     fmt.Sprintf("layer %s: all nodes unreachable: %v", layer, r.UnreachableNodes),
			Timestamp:       now,
			SuggestedAction: types.RestartScopeNone,
		}, true
	default:
		return types.HealthEvent{}, false
	}
}
