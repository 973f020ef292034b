package forkdetector

import (
	"testing"
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

func peer(id string) types.ClusterPeer {
	return types.ClusterPeer{ID: id, State: types.PeerStateReady}
}

func view(node string, peers ...types.ClusterPeer) types.NodeClusterView {
	return types.NodeClusterView{Node: node, Peers: peers}
}

func errView(node, cause string) types.NodeClusterView {
	return types.NodeClusterView{Node: node, Error: cause}
}

func TestDetect_Healthy_NoFork(t *testing.T) {
	snap := types.ClusterSnapshot{
		Layer: types.LayerL0Metagraph,
		Views: []types.NodeClusterView{
			view("n1", peer("p1"), peer("p2"), peer("p3")),
			view("n2", peer("p1"), peer("p2"), peer("p3")),
			view("n3", peer("p1"), peer("p2"), peer("p3")),
		},
	}
	r := Detect(snap)
	if r.Forked {
		t.Fatalf("expected no fork, got %+v", r)
	}
}

func TestDetect_SingleNodeFork_IndividualNode(t *testing.T) {
	// Scenario B: nodes 1,2 see {p1,p2}, node 3 sees {p3}.
	snap := types.ClusterSnapshot{
		Layer: types.LayerL0Metagraph,
		Views: []types.NodeClusterView{
			view("node1", peer("p1"), peer("p2")),
			view("node2", peer("p1"), peer("p2")),
			view("node3", peer("p3")),
		},
	}
	r := Detect(snap)
	if !r.Forked {
		t.Fatal("expected fork")
	}
	if r.SuggestedAction != types.RestartScopeIndividualNode {
		t.Errorf("got %s, want IndividualNode", r.SuggestedAction)
	}
	if len(r.MinorityNodes) != 1 || r.MinorityNodes[0] != "node3" {
		t.Errorf("got minority %v, want [node3]", r.MinorityNodes)
	}
}

func TestDetect_ThreeWayFork_FullLayer(t *testing.T) {
	// Scenario C: each of 3 nodes sees only itself.
	snap := types.ClusterSnapshot{
		Layer: types.LayerL1Currency,
		Views: []types.NodeClusterView{
			view("n1", peer("n1")),
			view("n2", peer("n2")),
			view("n3", peer("n3")),
		},
	}
	r := Detect(snap)
	if !r.Forked {
		t.Fatal("expected fork")
	}
	if r.SuggestedAction != types.RestartScopeFullLayer {
		t.Errorf("got %s, want FullLayer", r.SuggestedAction)
	}
}

func TestDetect_ErrorViewsDoNotCauseFork(t *testing.T) {
	snap := types.ClusterSnapshot{
		Layer: types.LayerL0Metagraph,
		Views: []types.NodeClusterView{
			view("n1", peer("p1"), peer("p2")),
			view("n2", peer("p1"), peer("p2")),
			errView("n3", "timeout"),
		},
	}
	r := Detect(snap)
	if r.Forked {
		t.Fatalf("error view alone should not cause a fork: %+v", r)
	}
	if len(r.UnreachableNodes) != 1 || r.UnreachableNodes[0] != "n3" {
		t.Errorf("got unreachable %v, want [n3]", r.UnreachableNodes)
	}
}

func TestDetect_AllUnreachable_NoFork(t *testing.T) {
	snap := types.ClusterSnapshot{
		Layer: types.LayerL0Metagraph,
		Views: []types.NodeClusterView{
			errView("n1", "timeout"),
			errView("n2", "refused"),
		},
	}
	r := Detect(snap)
	if r.Forked {
		t.Fatal("all-unreachable must not be reported as a fork")
	}
	if len(r.UnreachableNodes) != 2 {
		t.Errorf("got %d unreachable, want 2", len(r.UnreachableNodes))
	}

	event, ok := ToEvent(snap.Layer, r, time.Now(), func() string { return "id1" })
	if !ok {
		t.Fatal("expected NODE_UNREACHABLE event")
	}
	if event.Condition != types.ConditionNodeUnreachable {
		t.Errorf("got condition %s, want NODE_UNREACHABLE", event.Condition)
	}
}

func TestCanonicalKey_PermutationInvariant(t *testing.T) {
	a := canonicalKey([]types.ClusterPeer{peer("p3"), peer("p1"), peer("p2")})
	b := canonicalKey([]types.ClusterPeer{peer("p1"), peer("p2"), peer("p3")})
	if a != b {
		t.Errorf("canonicalKey not permutation-invariant: %q vs %q", a, b)
	}
}

func TestToEvent_NoEventWhenHealthy(t *testing.T) {
	snap := types.ClusterSnapshot{
		Views: []types.NodeClusterView{
			view("n1", peer("p1")),
			view("n2", peer("p1")),
		},
	}
	r := Detect(snap)
	_, ok := ToEvent(snap.Layer, r, time.Now(), func() string { return "id" })
	if ok {
		t.Fatal("expected no event for a healthy snapshot")
	}
}
