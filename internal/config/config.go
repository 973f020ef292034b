/*
Package config loads the monitor's cluster topology and tuning knobs
(spec §6.5) from a YAML file layered with environment-variable
overrides, via github.com/spf13/viper — the pack's config library
(Prit-Patel08-FlowForge, Vigneshboobathy-dag_rte).

This package is deliberately an external collaborator to the core: it
produces a plain Config value that cmd/beacon hands to the engine,
orchestrator, and monitor constructors. None of pkg/engine,
pkg/orchestrator, or pkg/monitor import viper or read the environment
themselves.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cuemby/beacon/pkg/types"
)

// PortConfig mirrors types.PortSet in the YAML/env shape viper decodes.
type PortConfig struct {
	Public int `mapstructure:"public"`
	P2P    int `mapstructure:"p2p"`
	CLI    int `mapstructure:"cli"`
}

// NodeConfig describes one cluster member and the layers it runs.
type NodeConfig struct {
	ID     string                `mapstructure:"id"`
	Host   string                `mapstructure:"host"`
	Layers map[string]PortConfig `mapstructure:"layers"`
}

// HypergraphConfig is the optional external-hypergraph detection block.
type HypergraphConfig struct {
	Enabled                 bool     `mapstructure:"enabled"`
	L0URLs                  []string `mapstructure:"l0Urls"`
	CheckIntervalMultiplier int      `mapstructure:"checkIntervalMultiplier"`
}

// Config is the fully resolved configuration the monitor process needs.
type Config struct {
	Nodes []NodeConfig `mapstructure:"nodes"`

	SnapshotStallMinutes       int  `mapstructure:"snapshotStallMinutes"`
	HealthCheckIntervalSeconds int  `mapstructure:"healthCheckIntervalSeconds"`
	RestartCooldownMinutes     int  `mapstructure:"restartCooldownMinutes"`
	MaxRestartsPerHour         int  `mapstructure:"maxRestartsPerHour"`
	DryRun                     bool `mapstructure:"dryRun"`

	SSHKeyPath string `mapstructure:"sshKeyPath"`
	SSHUser    string `mapstructure:"sshUser"`

	DataDir    string `mapstructure:"dataDir"`
	WebhookURL string `mapstructure:"webhookURL"`
	ListenAddr string `mapstructure:"listenAddr"`

	Hypergraph HypergraphConfig `mapstructure:"hypergraph"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("snapshotStallMinutes", 4)
	v.SetDefault("healthCheckIntervalSeconds", 60)
	v.SetDefault("restartCooldownMinutes", 10)
	v.SetDefault("maxRestartsPerHour", 6)
	v.SetDefault("dryRun", false)
	v.SetDefault("dataDir", "/var/lib/beacon")
	v.SetDefault("listenAddr", ":9500")
	v.SetDefault("hypergraph.checkIntervalMultiplier", 5)
}

// Load reads path (a YAML cluster-topology + tuning file) and layers
// BEACON_-prefixed environment variables over it for the scalar knobs,
// following the teacher's viper.SetConfigFile/ReadInConfig convention.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("BEACON")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if n.ID == "" || n.Host == "" {
			return fmt.Errorf("every node needs a non-empty id and host")
		}
	}
	if !c.DryRun && c.SSHKeyPath == "" {
		return fmt.Errorf("sshKeyPath is required unless dryRun is set")
	}
	return nil
}

// ToNodes converts the configured node list to the core's types.Node slice,
// preserving configured order (used for genesis election, spec §9).
// Layer keys are matched case-insensitively against the known layers,
// since viper lowercases map keys when it reads the file.
func (c *Config) ToNodes() []types.Node {
	out := make([]types.Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		layers := make(map[types.Layer]types.PortSet, len(n.Layers))
		for key, ports := range n.Layers {
			layer := types.Layer(key)
			for _, known := range types.StartupOrder {
				if strings.EqualFold(key, string(known)) {
					layer = known
				}
			}
			layers[layer] = types.PortSet{Public: ports.Public, P2P: ports.P2P, CLI: ports.CLI}
		}
		out = append(out, types.Node{ID: n.ID, Host: n.Host, Layers: layers})
	}
	return out
}
