/*
Package monitor implements the Monitor Loop (spec §4.8): it ticks on a
fixed interval, routes any HealthEvent the Condition Engine returns to
the Restart Orchestrator and the notifier, and performs graceful
shutdown.

Grounded on the teacher's reconciler.Reconciler Start/Stop/run pattern — a
ticker in a goroutine, selecting between the ticker channel and a stop
channel — generalized to also own a slower-cadence hypergraph check and
an optional snapshot cache write, and to distinguish daemon mode from a
single one-shot tick the way the teacher's cmd/warren distinguished
its subcommands.
*/
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/internal/metrics"
	"github.com/cuemby/beacon/internal/snapshotstore"
	"github.com/cuemby/beacon/pkg/engine"
	"github.com/cuemby/beacon/pkg/notifier"
	"github.com/cuemby/beacon/pkg/orchestrator"
	"github.com/cuemby/beacon/pkg/types"
)

// warmStartMaxAge bounds how old a persisted OrdinalSnapshot can be before
// warmStart ignores it rather than seeding the stall tracker with a value
// too old to be a meaningful baseline.
const warmStartMaxAge = 10 * time.Minute

// Config holds the Monitor's tuning knobs beyond what Engine/Orchestrator
// already carry.
type Config struct {
	Interval             time.Duration
	HypergraphMultiplier int // hypergraph check runs every Nth tick; 0 disables it
}

// Monitor owns one Condition Engine, one Restart Orchestrator, and the
// ambient notifier/snapshot-store collaborators for a single cluster.
type Monitor struct {
	Engine       *engine.Engine
	Orchestrator *orchestrator.Orchestrator
	Notifier     notifier.Notifier
	Hypergraph   *engine.HypergraphDetector
	Snapshots    snapshotstore.Source // nil disables snapshot persistence
	Config       Config

	mu         sync.Mutex
	startedAt  time.Time
	lastTickAt time.Time
	tickCount  int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Monitor. cfg.Interval defaults to 60 seconds if zero.
func New(e *engine.Engine, o *orchestrator.Orchestrator, n notifier.Notifier, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Monitor{
		Engine:       e,
		Orchestrator: o,
		Notifier:     n,
		Config:       cfg,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Run executes the monitor loop. In one-shot mode it runs a single tick
// and returns. In daemon mode it ticks every Config.Interval until ctx is
// canceled or Stop is called.
func (m *Monitor) Run(ctx context.Context, daemon bool) error {
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.warmStart()

	if !daemon {
		m.safeTick(ctx)
		return ctx.Err()
	}

	defer close(m.doneCh)
	ticker := time.NewTicker(m.Config.Interval)
	defer ticker.Stop()

	m.safeTick(ctx)
	for {
		select {
		case <-ticker.C:
			m.safeTick(ctx)
		case <-m.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// warmStart seeds the stall tracker's synthetic cluster key from the last
// persisted ordinal, so a freshly started process continues from the last
// known L0m ordinal instead of learning its baseline from the first live
// tick (spec SUPPLEMENTED FEATURES #3). It is a best-effort read: any error or missing record just leaves
// the tracker to learn its baseline from the first live tick.
func (m *Monitor) warmStart() {
	if m.Snapshots == nil {
		return
	}
	key := engine.StallTrackerKey()
	log := logging.WithComponent("monitor")
	snap, found, err := m.Snapshots.LoadOrdinalSnapshot(key.Node, key.Layer)
	if err != nil {
		log.Warn().Err(err).Msg("could not load warm-start ordinal snapshot")
		return
	}
	if !found || time.Since(snap.Timestamp) > warmStartMaxAge {
		return
	}
	m.Engine.Tracker.Update(key, snap.Ordinal, snap.Timestamp)
	log.Info().Int64("ordinal", snap.Ordinal).Msg("warm-started stall tracker from snapshot store")
}

// persistSnapshots writes the Engine's most recent observations, plus the
// stall tracker's synthetic cluster key that warmStart reads back, to the
// snapshot store, if one is configured. Failures are logged and otherwise
// ignored — persistence is a warm-baseline convenience, never load-bearing
// for a tick's own decision (spec SUPPLEMENTED FEATURES #3).
func (m *Monitor) persistSnapshots(now time.Time) {
	if m.Snapshots == nil {
		return
	}
	log := logging.WithComponent("monitor")
	key := engine.StallTrackerKey()
	if ordinal, ok := m.Engine.Tracker.LastOrdinal(key); ok {
		snap := types.OrdinalSnapshot{Node: key.Node, Layer: key.Layer, Ordinal: ordinal, Timestamp: now}
		if err := m.Snapshots.SaveOrdinalSnapshot(snap); err != nil {
			log.Warn().Err(err).Str("node", key.Node).Msg("failed to persist cluster ordinal snapshot")
		}
	}
	for _, snap := range m.Engine.LastClusterSnapshots {
		if err := m.Snapshots.SaveClusterSnapshot(snap); err != nil {
			log.Warn().Err(err).Str("layer", string(snap.Layer)).Msg("failed to persist cluster snapshot")
		}
	}
	for _, snap := range m.Engine.LastOrdinalSnapshots {
		if err := m.Snapshots.SaveOrdinalSnapshot(snap); err != nil {
			log.Warn().Err(err).Str("node", snap.Node).Msg("failed to persist ordinal snapshot")
		}
	}
}

// Stop requests the loop to stop after its current tick finishes. It does
// not cancel an in-flight restart procedure; callers that need that
// should cancel the context passed to Run instead (spec §4.8, §5).
func (m *Monitor) Stop() {
	close(m.stopCh)
}

// safeTick runs one tick and recovers from a panic at the tick boundary:
// the panic is logged and is never fatal to the loop. No notification is
// sent for it.
func (m *Monitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.WithComponent("monitor").Error().Interface("panic", r).Msg("recovered from panic during tick")
		}
	}()

	timer := metrics.NewTimer()
	now := time.Now()
	event, hasEvent := m.Engine.Tick(ctx, now)
	timer.ObserveDuration(metrics.TickDuration)
	metrics.TicksTotal.Inc()
	m.persistSnapshots(now)

	m.mu.Lock()
	m.tickCount++
	tickNum := m.tickCount
	m.lastTickAt = now
	m.mu.Unlock()

	if hasEvent {
		metrics.EventsTotal.WithLabelValues(string(event.Condition), string(event.Layer)).Inc()
		logging.WithEvent(event.ID).Info().Str("condition", string(event.Condition)).Msg("health event detected")

		if m.Notifier != nil {
			m.Notifier.Notify(ctx, event)
		}

		if event.SuggestedAction != types.RestartScopeNone && m.Orchestrator != nil {
			record, outcome := m.Orchestrator.Execute(ctx, event)
			logging.WithComponent("monitor").Info().Str("outcome", string(outcome)).Str("record", record.ID).Msg("orchestrator finished")
		}
	}

	if m.Hypergraph != nil && m.Config.HypergraphMultiplier > 0 && tickNum%int64(m.Config.HypergraphMultiplier) == 0 {
		if hgEvent, ok := m.Hypergraph.Check(ctx, now); ok {
			metrics.EventsTotal.WithLabelValues(string(hgEvent.Condition), string(hgEvent.Layer)).Inc()
			if m.Notifier != nil {
				m.Notifier.Notify(ctx, hgEvent)
			}
		}
	}
}

// Status is a liveness snapshot for internal/httpapi's /healthz and
// /readyz handlers.
type Status struct {
	StartedAt  time.Time
	LastTickAt time.Time
	TickCount  int64
}

// Status returns the Monitor's current liveness snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{StartedAt: m.startedAt, LastTickAt: m.lastTickAt, TickCount: m.tickCount}
}
