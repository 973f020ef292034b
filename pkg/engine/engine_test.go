package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/cuemby/beacon/pkg/orchestrator"
	"github.com/cuemby/beacon/pkg/stalltracker"
	"github.com/cuemby/beacon/pkg/types"
)

// fakeNodeAPI is a deterministic NodeAPI stand-in for engine tests, per
// spec §9's dependency-injection design note.
type fakeNodeAPI struct {
	clusterByNode map[string][]types.ClusterPeer
	clusterErr    map[string]string
	ordinalByNode map[string]int64
	infoByNode    map[string]*types.NodeInfo
}

func (f *fakeNodeAPI) GetCluster(ctx context.Context, host string, port int) ([]types.ClusterPeer, string) {
	key := keyOf(host, port)
	if errStr, ok := f.clusterErr[key]; ok {
		return nil, errStr
	}
	return f.clusterByNode[key], ""
}

func (f *fakeNodeAPI) GetOrdinal(ctx context.Context, host string, port int, layer types.Layer) int64 {
	key := keyOf(host, port)
	if v, ok := f.ordinalByNode[key]; ok {
		return v
	}
	return -1
}

func (f *fakeNodeAPI) GetNodeInfo(ctx context.Context, host string, port int) *types.NodeInfo {
	return f.infoByNode[keyOf(host, port)]
}

func (f *fakeNodeAPI) ProbeHypergraphCluster(ctx context.Context, url string) ([]types.ClusterPeer, string) {
	return nil, "not configured"
}

func keyOf(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

func threeNodeCluster() []types.Node {
	mkNode := func(id, host string) types.Node {
		return types.Node{
			ID:   id,
			Host: host,
			Layers: map[types.Layer]types.PortSet{
				types.LayerL0Metagraph: {Public: 9000},
				types.LayerL1Currency:  {Public: 9100},
				types.LayerL1Data:      {Public: 9200},
				types.LayerL0Global:    {Public: 9300},
			},
		}
	}
	return []types.Node{mkNode("node1", "h1"), mkNode("node2", "h2"), mkNode("node3", "h3")}
}

func newIDSeq() func() string {
	n := 0
	return func() string {
		n++
		return keyOf("id", n)
	}
}

func TestEngine_Tick_HealthyClusterNoEvent(t *testing.T) {
	nodes := threeNodeCluster()
	peers := []types.ClusterPeer{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}

	fake := &fakeNodeAPI{
		clusterByNode: map[string][]types.ClusterPeer{
			"h1:9000": peers, "h2:9000": peers, "h3:9000": peers,
			"h1:9100": peers, "h2:9100": peers, "h3:9100": peers,
			"h1:9200": peers, "h2:9200": peers, "h3:9200": peers,
		},
		ordinalByNode: map[string]int64{"h1:9000": 100},
		infoByNode: map[string]*types.NodeInfo{
			"h1:9000": {State: types.PeerStateReady}, "h2:9000": {State: types.PeerStateReady}, "h3:9000": {State: types.PeerStateReady},
			"h1:9100": {State: types.PeerStateReady}, "h2:9100": {State: types.PeerStateReady}, "h3:9100": {State: types.PeerStateReady},
			"h1:9200": {State: types.PeerStateReady}, "h2:9200": {State: types.PeerStateReady}, "h3:9200": {State: types.PeerStateReady},
			"h1:9300": {State: types.PeerStateReady}, "h2:9300": {State: types.PeerStateReady}, "h3:9300": {State: types.PeerStateReady},
		},
	}

	e := &Engine{Nodes: nodes, Client: fake, Tracker: stalltracker.New(), StallThreshold: 4 * time.Minute, NewID: newIDSeq()}
	_, ok := e.Tick(context.Background(), time.Now())
	if ok {
		t.Fatal("expected no event for a fully healthy cluster")
	}
}

func TestEngine_Tick_ForkWinsOverStall(t *testing.T) {
	nodes := threeNodeCluster()
	minorityPeers := []types.ClusterPeer{{ID: "p3"}}
	majorityPeers := []types.ClusterPeer{{ID: "p1"}, {ID: "p2"}}

	fake := &fakeNodeAPI{
		clusterByNode: map[string][]types.ClusterPeer{
			"h1:9000": majorityPeers, "h2:9000": majorityPeers, "h3:9000": minorityPeers,
		},
		ordinalByNode: map[string]int64{"h1:9000": 500},
	}

	// L0m has sat at ordinal 500 for longer than the threshold, so the
	// stall check would fire if the fork check did not win first.
	now := time.Now()
	tracker := stalltracker.New()
	tracker.Update(StallTrackerKey(), 500, now.Add(-5*time.Minute))

	e := &Engine{Nodes: nodes, Client: fake, Tracker: tracker, StallThreshold: 4 * time.Minute, NewID: newIDSeq()}
	event, ok := e.Tick(context.Background(), now)
	if !ok {
		t.Fatal("expected a fork event")
	}
	if event.Condition != types.ConditionForkDetected {
		t.Errorf("got %s, want FORK_DETECTED", event.Condition)
	}
	if event.SuggestedAction != types.RestartScopeIndividualNode {
		t.Errorf("got %s, want IndividualNode", event.SuggestedAction)
	}
}

func TestEngine_Tick_ClusterStallAfterThreshold(t *testing.T) {
	nodes := threeNodeCluster()
	peers := []types.ClusterPeer{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	fake := &fakeNodeAPI{
		clusterByNode: map[string][]types.ClusterPeer{
			"h1:9000": peers, "h2:9000": peers, "h3:9000": peers,
			"h1:9100": peers, "h2:9100": peers, "h3:9100": peers,
			"h1:9200": peers, "h2:9200": peers, "h3:9200": peers,
		},
		ordinalByNode: map[string]int64{"h1:9000": 500},
		infoByNode: map[string]*types.NodeInfo{
			"h1:9000": {State: types.PeerStateReady}, "h2:9000": {State: types.PeerStateReady}, "h3:9000": {State: types.PeerStateReady},
			"h1:9100": {State: types.PeerStateReady}, "h2:9100": {State: types.PeerStateReady}, "h3:9100": {State: types.PeerStateReady},
			"h1:9200": {State: types.PeerStateReady}, "h2:9200": {State: types.PeerStateReady}, "h3:9200": {State: types.PeerStateReady},
			"h1:9300": {State: types.PeerStateReady}, "h2:9300": {State: types.PeerStateReady}, "h3:9300": {State: types.PeerStateReady},
		},
	}

	e := &Engine{Nodes: nodes, Client: fake, Tracker: stalltracker.New(), StallThreshold: 4 * time.Minute, NewID: newIDSeq()}

	t0 := time.Now()
	_, ok := e.Tick(context.Background(), t0)
	if ok {
		t.Fatal("first observation must not be stalled")
	}

	later := t0.Add(5 * time.Minute)
	event, ok := e.Tick(context.Background(), later)
	if !ok {
		t.Fatal("expected a stall event after the threshold elapses with no advance")
	}
	if event.Condition != types.ConditionSnapshotStall {
		t.Errorf("got %s, want SNAPSHOT_STALL", event.Condition)
	}
	if event.SuggestedAction != types.RestartScopeFullMetagraph {
		t.Errorf("got %s, want FullMetagraph", event.SuggestedAction)
	}
}

func TestEngine_Tick_UnhealthyNodeFallthrough(t *testing.T) {
	nodes := threeNodeCluster()
	peers := []types.ClusterPeer{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	fake := &fakeNodeAPI{
		clusterByNode: map[string][]types.ClusterPeer{
			"h1:9000": peers, "h2:9000": peers, "h3:9000": peers,
			"h1:9100": peers, "h2:9100": peers, "h3:9100": peers,
			"h1:9200": peers, "h2:9200": peers, "h3:9200": peers,
		},
		ordinalByNode: map[string]int64{"h1:9000": 100},
		infoByNode: map[string]*types.NodeInfo{
			"h1:9000": {State: types.PeerStateReady}, "h2:9000": {State: types.PeerStateReady}, "h3:9000": {State: types.PeerStateReady},
			"h1:9100": {State: types.PeerStateReady}, "h2:9100": {State: types.PeerStateReady}, "h3:9100": {State: types.PeerStateReady},
			"h1:9200": {State: types.PeerStateReady}, "h2:9200": {State: types.PeerStateReady},
			// h3:9200 deliberately absent -> nil -> unreachable
			"h1:9300": {State: types.PeerStateReady}, "h2:9300": {State: types.PeerStateReady}, "h3:9300": {State: types.PeerStateReady},
		},
	}

	e := &Engine{Nodes: nodes, Client: fake, Tracker: stalltracker.New(), StallThreshold: 4 * time.Minute, NewID: newIDSeq()}
	event, ok := e.Tick(context.Background(), time.Now())
	if !ok {
		t.Fatal("expected an unhealthy-node event")
	}
	if event.Condition != types.ConditionNodeUnreachable {
		t.Errorf("got %s, want NODE_UNREACHABLE", event.Condition)
	}
	if event.SuggestedAction != types.RestartScopeIndividualNode {
		t.Errorf("got %s, want IndividualNode for a single bad pair", event.SuggestedAction)
	}
	if event.Layer != types.LayerL1Data {
		t.Errorf("got layer %q, want %q so the orchestrator can target the right process", event.Layer, types.LayerL1Data)
	}
	if len(event.NodeIDs) != 1 || event.NodeIDs[0] != "node3" {
		t.Errorf("got NodeIDs %v, want [node3]", event.NodeIDs)
	}

	// Feed the event through the orchestrator to confirm the IndividualNode
	// restart it suggests succeeds on the event's layer.
	runner := &recordingRunner{}
	o := orchestrator.New(nodes, runner, orchestrator.Config{CooldownMinutes: 10, MaxRestartsPerHour: 6}, newIDSeq())
	o.Sleep = func(time.Duration) {}
	_, outcome := o.Execute(context.Background(), event)
	if outcome != types.OutcomeRestarted {
		t.Errorf("got outcome %s, want restarted", outcome)
	}
}

// recordingRunner is a minimal orchestrator.CommandRunner fake for
// exercising the engine's events against the real orchestrator.
type recordingRunner struct{}

func (r *recordingRunner) Stop(ctx context.Context, host string, layer types.Layer) error {
	return nil
}
func (r *recordingRunner) StartGenesis(ctx context.Context, host string, layer types.Layer) error {
	return nil
}
func (r *recordingRunner) StartAndJoin(ctx context.Context, host string, layer types.Layer, seedHost string) error {
	return nil
}
