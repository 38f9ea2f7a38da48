package main

import (
	"flag"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/grafana/ccbuffer/internal/buffervnode"
	"github.com/grafana/ccbuffer/internal/publisher"
	"github.com/grafana/ccbuffer/internal/ringutil"
)

// Config aggregates every component's configuration into the one
// flag.FlagSet a cobra command registers, the same way mimir.Config
// composes each module's RegisterFlags. A YAML config file, if given via
// -config.file, is loaded before flags are registered, so its values
// become the flags' defaults and an explicit flag still wins.
type Config struct {
	ConfigFile string `yaml:"-"`

	InstanceID string `yaml:"instance_id"`
	Partitions uint   `yaml:"partitions"`

	// PeerDCs is a static comma-separated peer datacenter list,
	// standing in for a real metadata service (internal/metadata.Client).
	PeerDCs string `yaml:"peer_datacenters"`

	// PeerAddrs is a comma-separated dcid=host:port list resolving
	// PeerDCs entries to dialable addresses for the publisher socket.
	PeerAddrs string `yaml:"peer_addresses"`

	// NodeAddressConfigFile, if set, points at a node-address.config
	// TOML file (spec.md §6) giving this instance's public_ip, used to
	// advertise its ring address. Falls back to interface discovery
	// when unset.
	NodeAddressConfigFile string `yaml:"node_address_config_file"`

	BufferVnode buffervnode.Config `yaml:"buffer_vnode"`
	Publisher   publisher.Config   `yaml:"publisher"`
	Ring        ringutil.Config    `yaml:"ring"`
}

// LoadFromFile unmarshals a YAML document at path into cfg, the same way
// ruler's API.CreateRuleGroup unmarshals a YAML payload with
// gopkg.in/yaml.v3. Fields the file doesn't mention keep cfg's existing
// (zero or already-set) values.
func (cfg *Config) LoadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return errors.Wrap(err, "failed to parse config file")
	}
	return nil
}

// RegisterFlags registers every component's flags under its own prefix,
// using cfg's current field values as defaults so that values already
// populated by LoadFromFile survive unless a flag explicitly overrides
// them.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.ConfigFile, "config.file", cfg.ConfigFile, "YAML config file to load before applying flags.")
	f.StringVar(&cfg.InstanceID, "instance-id", cfg.InstanceID, "Unique id for this instance in the partition ring.")
	if cfg.Partitions == 0 {
		cfg.Partitions = 8
	}
	f.UintVar(&cfg.Partitions, "partitions", cfg.Partitions, "Number of buffer vnode partitions this instance hosts.")
	f.StringVar(&cfg.PeerDCs, "peer-datacenters", cfg.PeerDCs, "Comma-separated list of peer datacenter ids to broadcast transactions to.")
	f.StringVar(&cfg.PeerAddrs, "peer-addresses", cfg.PeerAddrs, "Comma-separated dcid=host:port list resolving peer-datacenters to dial addresses.")
	f.StringVar(&cfg.NodeAddressConfigFile, "node-address-config", cfg.NodeAddressConfigFile, "Path to a node-address.config TOML file giving this instance's public_ip. Falls back to interface discovery when unset.")

	cfg.BufferVnode.RegisterFlags(f)
	cfg.Publisher.RegisterFlags(f)
	cfg.Ring.RegisterFlags(f)
}

// Validate checks every component's config and this command's own flags.
func (cfg *Config) Validate() error {
	if cfg.InstanceID == "" {
		return errors.New("-instance-id is required")
	}
	if cfg.Partitions == 0 {
		return errors.New("-partitions must be at least 1")
	}
	if err := cfg.BufferVnode.Validate(); err != nil {
		return err
	}
	if err := cfg.Publisher.Validate(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) peerDCList() []string {
	return splitNonEmpty(cfg.PeerDCs)
}

func (cfg *Config) peerAddrTable() (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitNonEmpty(cfg.PeerAddrs) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("malformed -peer-addresses entry %q, want dcid=host:port", pair)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
