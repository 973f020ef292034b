package sshrunner

import (
	"context"

	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/pkg/orchestrator"
	"github.com/cuemby/beacon/pkg/types"
)

// DryRunRunner decorates a *Runner, logging the command its builders would
// have run instead of executing it (spec §6.2's dry-run requirement).
type DryRunRunner struct {
	Inner *Runner
}

var _ orchestrator.CommandRunner = (*DryRunRunner)(nil)

// Stop logs the stop command without running it.
func (d *DryRunRunner) Stop(ctx context.Context, host string, layer types.Layer) error {
	logging.WithLayer(string(layer)).Info().Str("host", host).
		Strs("command", d.Inner.StopCmd(layer)).Msg("dry-run: would stop layer")
	return nil
}

// StartGenesis logs the start-genesis command without running it.
func (d *DryRunRunner) StartGenesis(ctx context.Context, host string, layer types.Layer) error {
	logging.WithLayer(string(layer)).Info().Str("host", host).
		Strs("command", d.Inner.StartGenesisCmd(layer)).Msg("dry-run: would start genesis")
	return nil
}

// StartAndJoin logs the start-and-join command without running it.
func (d *DryRunRunner) StartAndJoin(ctx context.Context, host string, layer types.Layer, seedHost string) error {
	logging.WithLayer(string(layer)).Info().Str("host", host).Str("seed", seedHost).
		Strs("command", d.Inner.StartAndJoinCmd(layer, seedHost)).Msg("dry-run: would start and join")
	return nil
}
