package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/pkg/types"
)

// HypergraphConfig is the optional external-hypergraph detection block
// from spec §6.5.
type HypergraphConfig struct {
	Enabled                 bool
	L0URLs                  []string
	CheckIntervalMultiplier int
}

// HypergraphDetector probes the wider hypergraph's L0 cluster view on a
// slower cadence than the per-tick Condition Engine and reports whether
// the local metagraph looks disconnected from it.
//
// The heuristic below is exactly spec §9's Open Question resolution: it is
// weak for local clusters with more than three nodes, and is left as-is
// per the spec's own instruction rather than strengthened speculatively.
type HypergraphDetector struct {
	client       NodeAPI
	cfg          HypergraphConfig
	localNodeCnt int
	newID        func() string
}

// NewHypergraphDetector constructs a detector for a given local node count.
func NewHypergraphDetector(client NodeAPI, cfg HypergraphConfig, localNodeCount int, newID func() string) *HypergraphDetector {
	return &HypergraphDetector{client: client, cfg: cfg, localNodeCnt: localNodeCount, newID: newID}
}

// Check probes every configured l0Url and returns a HYPERGRAPH_HEALTH
// event if the wider hypergraph cluster reported by any of them has no
// more peers than the local node count. suggestedAction is always None:
// this condition is detection-only (spec §1, SPEC_FULL's SUPPLEMENTED
// FEATURES).
func (d *HypergraphDetector) Check(ctx context.Context, now time.Time) (types.HealthEvent, bool) {
	if !d.cfg.Enabled {
		return types.HealthEvent{}, false
	}

	for _, url := range d.cfg.L0URLs {
		peers, errStr := d.client.ProbeHypergraphCluster(ctx, url)
		if errStr != "" {
			logging.WithComponent("hypergraph").Warn().Str("url", url).Str("error", errStr).Msg("hypergraph probe failed")
			continue
		}
		if len(peers) <= d.localNodeCnt {
			return types.HealthEvent{
				ID:              d.newID(),
				Condition:       types.ConditionHypergraphHealth,
				Layer:           types.LayerL0Global,
				Description:     fmt.Sprintf("hypergraph cluster at %s reports %d peers, local node count is %d: possible disconnection", url, len(peers), d.localNodeCnt),
				Timestamp:       now,
				SuggestedAction: types.RestartScopeNone,
			}, true
		}
	}
	return types.HealthEvent{}, false
}
