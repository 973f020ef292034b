/*
Package orchestrator implements the Restart Orchestrator (spec §4.7): it
owns cooldown and rate-limit gating and the three multi-step recovery
procedures (IndividualNode, FullLayer, FullMetagraph), executed serially
through a CommandRunner port.

Grounded on the teacher's reconciler.Reconciler — a single mutex-guarded
owner that runs one cycle at a time — generalized here to a single
exported Execute call rather than a background ticker, since the Monitor
Loop (not the orchestrator) owns scheduling.
*/
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/internal/metrics"
	"github.com/cuemby/beacon/pkg/types"
)

// CommandRunner is the command port from spec §6.2.
type CommandRunner interface {
	Stop(ctx context.Context, host string, layer types.Layer) error
	StartGenesis(ctx context.Context, host string, layer types.Layer) error
	StartAndJoin(ctx context.Context, host string, layer types.Layer, seedHost string) error
}

// SkipReason names why Execute skipped a restart.
type SkipReason string

const (
	SkipCooldown  SkipReason = "cooldown"
	SkipRateLimit SkipReason = "rate-limit"
)

// Config holds the orchestrator's tuning knobs (spec §6.5).
type Config struct {
	CooldownMinutes    int
	MaxRestartsPerHour int
}

// Orchestrator executes restart procedures for one cluster.
type Orchestrator struct {
	Nodes   []types.Node
	Runner  CommandRunner
	Records *RecordBuffer
	Config  Config
	NewID   func() string
	Now     func() time.Time
	Sleep   func(d time.Duration)
}

// New creates an Orchestrator with real time and sleep functions.
func New(nodes []types.Node, runner CommandRunner, cfg Config, newID func() string) *Orchestrator {
	return &Orchestrator{
		Nodes:   nodes,
		Runner:  runner,
		Records: NewRecordBuffer(),
		Config:  cfg,
		NewID:   newID,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Execute runs event's suggested restart scope, subject to cooldown and
// rate-limit gating (spec §4.7). It is not safe to call concurrently;
// the Monitor Loop guarantees serial invocation (spec §5).
func (o *Orchestrator) Execute(ctx context.Context, event types.HealthEvent) (types.RestartRecord, types.Outcome) {
	now := o.Now()

	if last, ok := o.Records.Last(); ok {
		cooldown := time.Duration(o.Config.CooldownMinutes) * time.Minute
		if now.Sub(last.FinishedAt) < cooldown {
			return o.skip(event, now, SkipCooldown), types.OutcomeSkipped
		}
	}

	recent := o.Records.Since(now, time.Hour)
	if len(recent) >= o.Config.MaxRestartsPerHour {
		return o.skip(event, now, SkipRateLimit), types.OutcomeSkipped
	}

	record := types.RestartRecord{
		ID:        o.NewID(),
		Scope:     event.SuggestedAction,
		Layer:     event.Layer,
		NodeIDs:   event.NodeIDs,
		StartedAt: now,
	}

	timer := metrics.NewTimer()
	var err error
	switch event.SuggestedAction {
	case types.RestartScopeIndividualNode:
		err = o.individualNode(ctx, event.NodeIDs, event.Layer, event.HealthyNodeIDs)
	case types.RestartScopeFullLayer:
		layer := event.Layer
		if layer == "" && len(event.AffectedLayers) > 0 {
			layer = event.AffectedLayers[0]
		}
		err = o.fullLayer(ctx, layer)
	case types.RestartScopeFullMetagraph:
		err = o.fullMetagraph(ctx)
	default:
		record.FinishedAt = now
		record.Outcome = types.OutcomeSkipped
		record.Detail = "no actionable restart scope"
		o.Records.Add(record)
		return record, types.OutcomeSkipped
	}

	record.FinishedAt = o.Now()
	timer.ObserveDurationVec(metrics.RestartDuration, string(event.SuggestedAction))

	if err != nil {
		record.Outcome = types.OutcomeFailed
		record.Detail = err.Error()
		logging.WithComponent("orchestrator").Error().Err(err).Str("scope", string(event.SuggestedAction)).Msg("restart procedure failed")
		metrics.RestartsTotal.WithLabelValues(string(event.SuggestedAction), string(types.OutcomeFailed)).Inc()
		o.Records.Add(record)
		return record, types.OutcomeFailed
	}

	record.Outcome = types.OutcomeRestarted
	metrics.RestartsTotal.WithLabelValues(string(event.SuggestedAction), string(types.OutcomeRestarted)).Inc()
	o.Records.Add(record)
	return record, types.OutcomeRestarted
}

func (o *Orchestrator) skip(event types.HealthEvent, now time.Time, reason SkipReason) types.RestartRecord {
	logging.WithComponent("orchestrator").Info().Str("condition", string(event.Condition)).Str("reason", string(reason)).Msg("restart skipped")
	return types.RestartRecord{
		ID:         o.NewID(),
		Scope:      event.SuggestedAction,
		Layer:      event.Layer,
		NodeIDs:    event.NodeIDs,
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    types.OutcomeSkipped,
		Detail:     string(reason),
	}
}

// individualNode restarts each target against a deterministic seed chosen
// from the remaining nodes on that layer (spec §4.7).
func (o *Orchestrator) individualNode(ctx context.Context, targets []string, layer types.Layer, healthyNodeIDs []string) error {
	for _, target := range targets {
		seed := o.chooseSeed(target, layer, targets, healthyNodeIDs)
		if seed == nil {
			// No seed available: downgrade to FullLayer per spec §4.7.
			return o.fullLayer(ctx, layer)
		}

		targetNode := o.nodeByID(target)
		if targetNode == nil {
			return fmt.Errorf("unknown node %s", target)
		}

		logging.WithNode(target).Debug().Str("layer", string(layer)).Str("seed", seed.ID).Msg("restarting node")

		if err := o.Runner.Stop(ctx, targetNode.Host, layer); err != nil {
			return fmt.Errorf("stop %s/%s: %w", target, layer, err)
		}
		o.Sleep(5 * time.Second)

		if err := o.Runner.StartAndJoin(ctx, targetNode.Host, layer, seed.Host); err != nil {
			return fmt.Errorf("startAndJoin %s/%s: %w", target, layer, err)
		}
		o.Sleep(15 * time.Second)
	}
	return nil
}

// chooseSeed picks a restart seed for target on layer (spec §4.7: seed ∈
// majorityNodes \ {target}). When the triggering event identified a
// majority/healthy set, the seed is restricted to that set so a restart
// can never pick another unreachable node as its seed; otherwise it falls
// back to the lowest-ID node that isn't itself under restart.
func (o *Orchestrator) chooseSeed(target string, layer types.Layer, excluded, healthyNodeIDs []string) *types.Node {
	excludeSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludeSet[id] = struct{}{}
	}

	candidates := o.nodesOrderedByID(layer)

	if len(healthyNodeIDs) > 0 {
		healthySet := make(map[string]struct{}, len(healthyNodeIDs))
		for _, id := range healthyNodeIDs {
			healthySet[id] = struct{}{}
		}
		for i := range candidates {
			if candidates[i].ID == target {
				continue
			}
			if _, ok := healthySet[candidates[i].ID]; !ok {
				continue
			}
			return &candidates[i]
		}
		return nil
	}

	for i := range candidates {
		if candidates[i].ID == target {
			continue
		}
		if _, excluded := excludeSet[candidates[i].ID]; excluded {
			continue
		}
		return &candidates[i]
	}
	return nil
}

// fullLayer stops every node on layer, elects a genesis node, and has the
// rest join it in configured order (spec §4.7 FullLayer: stop, wait 5s;
// elect genesis; join the rest).
func (o *Orchestrator) fullLayer(ctx context.Context, layer types.Layer) error {
	nodes := o.nodesInConfiguredOrder(layer)
	if err := o.stopLayer(ctx, layer, nodes, 5*time.Second); err != nil {
		return err
	}
	return o.electAndJoin(ctx, layer, nodes)
}

// stopLayer stops every node on layer in parallel, then waits settle for
// the stop to take effect. FullLayer and FullMetagraph document different
// settle durations for this same step (spec §4.7: 5s for FullLayer, 3s for
// FullMetagraph), so callers pass their own.
func (o *Orchestrator) stopLayer(ctx context.Context, layer types.Layer, nodes []types.Node, settle time.Duration) error {
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes configured for layer %s", layer)
	}

	errCh := make(chan error, len(nodes))
	for _, n := range nodes {
		n := n
		go func() { errCh <- o.Runner.Stop(ctx, n.Host, layer) }()
	}
	for range nodes {
		if err := <-errCh; err != nil {
			return fmt.Errorf("stop during %s restart: %w", layer, err)
		}
	}
	o.Sleep(settle)
	return nil
}

// electAndJoin runs FullLayer/FullMetagraph steps 2-4: elect the first
// node in configured order as genesis, start it, then have the rest join
// it in order (spec §4.7, §6.5). Callers whose nodes are already stopped
// (FullMetagraph's own step 1) call this directly instead of going
// through fullLayer and re-stopping them.
func (o *Orchestrator) electAndJoin(ctx context.Context, layer types.Layer, nodes []types.Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes configured for layer %s", layer)
	}

	genesis := nodes[0]
	if err := o.Runner.StartGenesis(ctx, genesis.Host, layer); err != nil {
		return fmt.Errorf("startGenesis %s/%s: %w", genesis.ID, layer, err)
	}
	o.Sleep(30 * time.Second)

	for _, n := range nodes[1:] {
		if err := o.Runner.StartAndJoin(ctx, n.Host, layer, genesis.Host); err != nil {
			return fmt.Errorf("startAndJoin %s/%s: %w", n.ID, layer, err)
		}
		o.Sleep(10 * time.Second)
	}
	return nil
}

// fullMetagraph stops all layers in reverse-startup order, waiting 3s
// after each (spec §4.7 FullMetagraph step 1 — a shorter settle than
// FullLayer's 5s, since each layer here is stopped on its own, not
// followed immediately by a join), then restarts them in startup order by
// running each layer's genesis-election and join steps directly — the
// stop already happened above, so it must not run fullLayer and repeat it.
func (o *Orchestrator) fullMetagraph(ctx context.Context) error {
	for _, layer := range types.StopOrder() {
		nodes := o.nodesInConfiguredOrder(layer)
		if len(nodes) == 0 {
			continue
		}
		if err := o.stopLayer(ctx, layer, nodes, 3*time.Second); err != nil {
			return fmt.Errorf("FullMetagraph stop: %w", err)
		}
	}

	for _, layer := range types.StartupOrder {
		nodes := o.nodesInConfiguredOrder(layer)
		if len(nodes) == 0 {
			continue
		}
		if err := o.electAndJoin(ctx, layer, nodes); err != nil {
			return fmt.Errorf("FullMetagraph start %s: %w", layer, err)
		}
		o.Sleep(20 * time.Second)
	}
	return nil
}

func (o *Orchestrator) nodeByID(id string) *types.Node {
	for i := range o.Nodes {
		if o.Nodes[i].ID == id {
			return &o.Nodes[i]
		}
	}
	return nil
}

// nodesOrderedByID returns every node configured for layer, sorted by ID
// ascending — the deterministic fallback order used for seed selection
// when an event carries no majority/healthy set (spec §9).
func (o *Orchestrator) nodesOrderedByID(layer types.Layer) []types.Node {
	var out []types.Node
	for _, n := range o.Nodes {
		if _, ok := n.Layers[layer]; ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// nodesInConfiguredOrder returns every node configured for layer, in the
// order they appear in o.Nodes — the "first node in configured order"
// genesis-election rule (spec §4.7, §6.5).
func (o *Orchestrator) nodesInConfiguredOrder(layer types.Layer) []types.Node {
	var out []types.Node
	for _, n := range o.Nodes {
		if _, ok := n.Layers[layer]; ok {
			out = append(out, n)
		}
	}
	return out
}
