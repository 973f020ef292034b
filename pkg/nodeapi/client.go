/*
Package nodeapi provides typed wrappers around the node HTTP API (spec
§4.2, §6.1). Each method collapses every probe.Error to a sentinel value —
an empty slice, -1, or nil — because the detectors that consume these
results interpret absence as evidence, not as an exception to propagate.
*/
package nodeapi

import (
	"context"
	"fmt"

	"github.com/cuemby/beacon/pkg/probe"
	"github.com/cuemby/beacon/pkg/types"
)

// Client is a thin typed facade over a Prober for a single cluster.
type Client struct {
	prober *probe.Prober
}

// New creates a Client using the given Prober. A nil Prober gets a default
// one, matching the teacher's NewHTTPChecker(url) convenience constructors.
func New(p *probe.Prober) *Client {
	if p == nil {
		p = probe.NewProber()
	}
	return &Client{prober: p}
}

type clusterInfoPeer struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	IP         string `json:"ip,omitempty"`
	PublicPort int    `json:"publicPort,omitempty"`
	P2PPort    int    `json:"p2pPort,omitempty"`
}

type nodeInfoResponse struct {
	State               string `json:"state"`
	ID                  string `json:"id,omitempty"`
	Host                string `json:"host,omitempty"`
	PublicPort          int    `json:"publicPort,omitempty"`
	P2PPort             int    `json:"p2pPort,omitempty"`
	SnapshotOrdinal     *int64 `json:"snapshotOrdinal,omitempty"`
	LastSnapshotOrdinal *int64 `json:"lastSnapshotOrdinal,omitempty"`
}

type checkpointResponse struct {
	Ordinal int64 `json:"ordinal"`
}

// GetCluster decodes GET /cluster/info. On any probe failure it returns
// nil peers and the probe error's text, which the engine records as an
// error view — evidence for the fork detector, not an exception (spec §4.2).
func (c *Client) GetCluster(ctx context.Context, host string, port int) ([]types.ClusterPeer, string) {
	url := fmt.Sprintf("http://%s:%d/cluster/info", host, port)
	var resp []clusterInfoPeer
	if err := c.prober.Get(ctx, url, probe.DefaultTimeout, &resp); err != nil {
		return nil, err.Error()
	}

	peers := make([]types.ClusterPeer, 0, len(resp))
	for _, p := range resp {
		peers = append(peers, types.ClusterPeer{
			ID:         p.ID,
			State:      types.PeerState(p.State),
			Host:       p.IP,
			PublicPort: p.PublicPort,
			P2PPort:    p.P2PPort,
		})
	}
	return peers, ""
}

// GetOrdinal fetches the current snapshot ordinal for layer on host:port.
// For LayerL0Metagraph it decodes the checkpoint endpoint; for
// LayerL0Global it decodes /node/info and falls back from
// snapshotOrdinal to lastSnapshotOrdinal to 0. Any other layer, or any
// probe failure, returns -1 (spec §4.2's sentinel for "no evidence").
func (c *Client) GetOrdinal(ctx context.Context, host string, port int, layer types.Layer) int64 {
	switch layer {
	case types.LayerL0Metagraph:
		url := fmt.Sprintf("http://%s:%d/data-application/v1/checkpoint", host, port)
		var resp checkpointResponse
		if err := c.prober.Get(ctx, url, probe.DefaultTimeout, &resp); err != nil {
			return -1
		}
		return resp.Ordinal
	case types.LayerL0Global:
		url := fmt.Sprintf("http://%s:%d/node/info", host, port)
		var resp nodeInfoResponse
		if err := c.prober.Get(ctx, url, probe.DefaultTimeout, &resp); err != nil {
			return -1
		}
		if resp.SnapshotOrdinal != nil {
			return *resp.SnapshotOrdinal
		}
		if resp.LastSnapshotOrdinal != nil {
			return *resp.LastSnapshotOrdinal
		}
		return 0
	default:
		return -1
	}
}

// GetNodeInfo decodes GET /node/info. Returns nil on any probe failure.
func (c *Client) GetNodeInfo(ctx context.Context, host string, port int) *types.NodeInfo {
	url := fmt.Sprintf("http://%s:%d/node/info", host, port)
	var resp nodeInfoResponse
	if err := c.prober.Get(ctx, url, probe.DefaultTimeout, &resp); err != nil {
		return nil
	}

	info := &types.NodeInfo{
		State:      types.PeerState(resp.State),
		ID:         resp.ID,
		Host:       resp.Host,
		PublicPort: resp.PublicPort,
		P2PPort:    resp.P2PPort,
	}
	if resp.SnapshotOrdinal != nil {
		info.SnapshotOrdinal = *resp.SnapshotOrdinal
	}
	if resp.LastSnapshotOrdinal != nil {
		info.LastSnapshotOrdinal = *resp.LastSnapshotOrdinal
	}
	return info
}

// ProbeHypergraphCluster probes an external hypergraph L0 URL's
// /cluster/info with the longer hypergraph timeout (spec §4.1).
func (c *Client) ProbeHypergraphCluster(ctx context.Context, url string) ([]types.ClusterPeer, string) {
	var resp []clusterInfoPeer
	if err := c.prober.Get(ctx, url, probe.DefaultHypergraphTimeout, &resp); err != nil {
		return nil, err.Error()
	}
	peers := make([]types.ClusterPeer, 0, len(resp))
	for _, p := range resp {
		peers = append(peers, types.ClusterPeer{ID: p.ID, State: types.PeerState(p.State)})
	}
	return peers, ""
}
