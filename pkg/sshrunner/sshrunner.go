/*
Package sshrunner implements the command port (spec §6.2) by shelling out
to the ssh binary, grounded on the teacher's health.ExecChecker exec.Cmd
pattern: build an *exec.Cmd, capture stdout/stderr, and report the exit
status rather than returning raw output to the caller.
*/
package sshrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cuemby/beacon/pkg/types"
)

// DefaultTimeout bounds a single SSH command invocation.
const DefaultTimeout = 30 * time.Second

// Runner executes layer lifecycle commands over SSH.
type Runner struct {
	KeyPath string
	User    string
	Timeout time.Duration

	// StopCmd, StartGenesisCmd, StartAndJoinCmd build the remote shell
	// command for each operation. New sets them to the layer binary's
	// conventional subcommands; a nil builder is not replaced by a default.
	StopCmd         func(layer types.Layer) []string
	StartGenesisCmd func(layer types.Layer) []string
	StartAndJoinCmd func(layer types.Layer, seedHost string) []string
}

// New creates a Runner with the default command templates.
func New(keyPath, user string) *Runner {
	return &Runner{
		KeyPath: keyPath,
		User:    user,
		Timeout: DefaultTimeout,
		StopCmd: func(layer types.Layer) []string {
			return []string{"sudo", "systemctl", "stop", fmt.Sprintf("cl-%s", layer)}
		},
		StartGenesisCmd: func(layer types.Layer) []string {
			return []string{"sudo", fmt.Sprintf("/opt/cl/%s/run.sh", layer), "start-genesis"}
		},
		StartAndJoinCmd: func(layer types.Layer, seedHost string) []string {
			return []string{"sudo", fmt.Sprintf("/opt/cl/%s/run.sh", layer), "start-and-join", "--seed", seedHost}
		},
	}
}

func (r *Runner) run(ctx context.Context, host string, remoteCmd []string) error {
	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := []string{
		"-i", r.KeyPath,
		"-o", "StrictHostKeyChecking=no",
		"-o", "ConnectTimeout=10",
		fmt.Sprintf("%s@%s", r.User, host),
		joinShellArgs(remoteCmd),
	}

	cmd := exec.CommandContext(execCtx, "ssh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh %s@%s %q: %w (stderr: %s)", r.User, host, remoteCmd, err, stderr.String())
	}
	return nil
}

func joinShellArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// Stop runs the stop command on host for layer.
func (r *Runner) Stop(ctx context.Context, host string, layer types.Layer) error {
	return r.run(ctx, host, r.StopCmd(layer))
}

// StartGenesis runs the start-as-genesis command on host for layer.
func (r *Runner) StartGenesis(ctx context.Context, host string, layer types.Layer) error {
	return r.run(ctx, host, r.StartGenesisCmd(layer))
}

// StartAndJoin runs the start-and-join command on host for layer, joining seedHost.
func (r *Runner) StartAndJoin(ctx context.Context, host string, layer types.Layer, seedHost string) error {
	return r.run(ctx, host, r.StartAndJoinCmd(layer, seedHost))
}
