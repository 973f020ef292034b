package engine

import (
	"context"

	"github.com/cuemby/beacon/pkg/types"
)

// NodeAPI is the subset of nodeapi.Client the detector chain depends on.
// Declaring it as an interface here (rather than importing the concrete
// client type) lets tests substitute a deterministic fake instead of
// spinning up httptest servers for every detector path, per spec §9's
// dependency-injection design note.
type NodeAPI interface {
	GetCluster(ctx context.Context, host string, port int) ([]types.ClusterPeer, string)
	GetOrdinal(ctx context.Context, host string, port int, layer types.Layer) int64
	GetNodeInfo(ctx context.Context, host string, port int) *types.NodeInfo
	ProbeHypergraphCluster(ctx context.Context, url string) ([]types.ClusterPeer, string)
}
