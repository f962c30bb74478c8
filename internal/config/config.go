// Package config implements the daemon's YAML configuration file: the
// WireGuard interface to program, where the state and key files live, the
// RPC listen address, and optional etcd replication settings (§10.3).
// Grounded directly on valonctl/pkg/config/config.go's Load/Validate shape.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default location for the organize daemon's
// configuration file.
const DefaultConfigPath = "/etc/vula/organize.yml"

// Config is the top-level daemon configuration.
type Config struct {
	Identity  IdentityConfig  `yaml:"identity"`
	WireGuard WireGuardConfig `yaml:"wireguard"`
	State     StateConfig     `yaml:"state"`
	RPC       RPCConfig       `yaml:"rpc"`
	Hosts     HostsConfig     `yaml:"hosts"`
	Etcd      *EtcdConfig     `yaml:"etcd,omitempty"`
}

// IdentityConfig names this host in the descriptors it signs and
// publishes (§11's our_latest_descriptors()).
type IdentityConfig struct {
	Hostname      string   `yaml:"hostname"` // e.g., "laptop.local."
	Port          uint16   `yaml:"port"`     // WireGuard listen port advertised in descriptors
	DescriptorTTL Duration `yaml:"descriptor_ttl"`
}

// WireGuardConfig names the kernel interface the collaborator programs.
type WireGuardConfig struct {
	Interface string `yaml:"interface"` // e.g., "wg-vula"
}

// StateConfig locates the persisted state and key files.
type StateConfig struct {
	StateFile string `yaml:"state_file"` // e.g., "/var/lib/vula/organize.state"
	KeyFile   string `yaml:"key_file"`   // e.g., "/var/lib/vula/organize.keys"
}

// RPCConfig controls the HTTP/JSON RPC surface (§6).
type RPCConfig struct {
	ListenAddr string `yaml:"listen_addr"` // e.g., "127.0.0.1:5354"
}

// HostsConfig locates the managed hosts file and the EXPIRE_TICK period.
type HostsConfig struct {
	Path           string   `yaml:"path"`            // e.g., "/etc/hosts"
	ExpireInterval Duration `yaml:"expire_interval"` // e.g., "60s"
}

// Duration parses YAML duration strings ("60s", "5m") into a time.Duration;
// yaml.v3 has no built-in support for time.Duration scalars.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// EtcdConfig enables the optional replicated descriptor mirror (§12.3).
// Nil Config.Etcd disables it entirely.
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// Load reads and parses the daemon configuration from path, defaulting to
// DefaultConfigPath when path is empty, then validates required fields and
// fills in defaults for optional ones.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RPC.ListenAddr == "" {
		c.RPC.ListenAddr = "127.0.0.1:5354"
	}
	if c.Hosts.Path == "" {
		c.Hosts.Path = "/etc/hosts"
	}
	if c.Hosts.ExpireInterval == 0 {
		c.Hosts.ExpireInterval = Duration(60 * time.Second)
	}
	if c.Identity.Port == 0 {
		c.Identity.Port = 5354
	}
	if c.Identity.DescriptorTTL == 0 {
		c.Identity.DescriptorTTL = Duration(300 * time.Second)
	}
}

// Validate checks the required fields are present, matching the teacher's
// Validate() shape in valonctl/pkg/config/config.go.
func (c *Config) Validate() error {
	if c.Identity.Hostname == "" {
		return fmt.Errorf("identity.hostname is required")
	}
	if c.WireGuard.Interface == "" {
		return fmt.Errorf("wireguard.interface is required")
	}
	if c.State.StateFile == "" {
		return fmt.Errorf("state.state_file is required")
	}
	if c.State.KeyFile == "" {
		return fmt.Errorf("state.key_file is required")
	}
	if c.RPC.ListenAddr == "" {
		return fmt.Errorf("rpc.listen_addr is required")
	}
	if c.Etcd != nil && len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required when etcd is configured")
	}
	return nil
}
