package buffervnode

import (
	"flag"
	"time"
)

// Config holds the buffer vnode's flush-timer configuration
// (spec.md §6: BUFFER_TXN_TIMER).
type Config struct {
	FlushInterval time.Duration `yaml:"buffer_txn_timer"`
}

// RegisterFlags registers the buffer vnode flags. A zero FlushInterval
// (no value loaded from a config file yet) defaults to 100ms.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}
	f.DurationVar(&cfg.FlushInterval, "buffer.flush-interval", cfg.FlushInterval, "Period between buffer flushes of a partition's outgoing transactions (BUFFER_TXN_TIMER).")
}

// Validate checks the buffer vnode config.
func (cfg *Config) Validate() error {
	if cfg.FlushInterval <= 0 {
		return errFlushIntervalNotPositive
	}
	return nil
}
