package publisher

import (
	"flag"

	"github.com/pkg/errors"
)

// Config holds the publisher's configuration (spec.md §6: pubsub_port,
// CCRDT_REPLICATION_FACTOR).
type Config struct {
	Port              int `yaml:"pubsub_port"`
	ReplicationFactor int `yaml:"ccrdt_replication_factor"`
}

// RegisterFlags registers the publisher flags. Zero values (no config
// file loaded yet) default to pubsub_port 9090 and replication factor 3.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 3
	}
	f.IntVar(&cfg.Port, "publisher.pubsub-port", cfg.Port, "TCP port the publisher binds its outbound endpoint to.")
	f.IntVar(&cfg.ReplicationFactor, "publisher.ccrdt-replication-factor", cfg.ReplicationFactor, "Replication factor governing the full/short split in BroadcastTuple.")
}

// Validate checks the publisher config.
func (cfg *Config) Validate() error {
	if cfg.Port <= 0 {
		return errors.New("publisher.pubsub-port must be positive")
	}
	if cfg.ReplicationFactor < 1 {
		return errors.New("publisher.ccrdt-replication-factor must be at least 1")
	}
	return nil
}
