// Package snapshotstore provides the concrete, swappable implementation
// of the pluggable SnapshotSource spec §1 names as an external
// collaborator: the core engine only depends on the Source interface
// below, never on bbolt directly.
package snapshotstore

import (
	"github.com/cuemby/beacon/pkg/types"
)

// Source is the pluggable snapshot cache the core engine accepts but does
// not manage (spec §1). Writes from the Monitor Loop are fire-and-forget:
// a failure is logged, never fatal, mirroring the notifier port's error
// handling.
type Source interface {
	SaveClusterSnapshot(snap types.ClusterSnapshot) error
	LoadClusterSnapshot(layer types.Layer) (types.ClusterSnapshot, bool, error)
	SaveOrdinalSnapshot(snap types.OrdinalSnapshot) error
	LoadOrdinalSnapshot(node string, layer types.Layer) (types.OrdinalSnapshot, bool, error)
	Close() error
}
