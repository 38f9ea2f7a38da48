// Package ringutil bootstraps the membership ring ccbuffer's partition
// ownership checks run against, the same way MultitenantCompactor's
// starting() brings up its sharding ring: a KV-backed ring.Lifecycler
// registers this instance, ring.New reads the resulting ring state, and
// both are supervised as one services.Manager.
package ringutil

import (
	"context"
	"flag"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/kv"
	"github.com/grafana/dskit/ring"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// RingKey names this module's entry in the KV store, distinguishing it
// from any other ring (e.g. a distributor's) sharing the same store.
const RingKey = "ccbuffer-buffer-vnode"

// Config is the subset of ring.LifecyclerConfig ccbuffer exposes as
// flags; everything else takes the same defaults MultitenantCompactor's
// RingConfig does.
type Config struct {
	KVStore      kv.Config     `yaml:"kvstore"`
	InstanceAddr string        `yaml:"instance_addr"`
	InstancePort int           `yaml:"instance_port"`
	NumTokens    int           `yaml:"num_tokens"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`

	WaitActiveInstanceTimeout time.Duration `yaml:"wait_active_instance_timeout"`
}

// RegisterFlags registers the ring's flags under the ccbuffer.ring
// prefix. Zero values (no config file loaded yet) take the same
// defaults MultitenantCompactor's RingConfig does. InstanceAddr is left
// empty by default; serve() falls back to address discovery (see
// internal/metadata) when no flag or config file sets it.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.KVStore.RegisterFlagsWithPrefix("ccbuffer.ring.", "inmemory", f)

	if cfg.InstancePort == 0 {
		cfg.InstancePort = 9095
	}
	if cfg.NumTokens == 0 {
		cfg.NumTokens = 128
	}
	if cfg.HeartbeatPeriod == 0 {
		cfg.HeartbeatPeriod = 15 * time.Second
	}
	if cfg.WaitActiveInstanceTimeout == 0 {
		cfg.WaitActiveInstanceTimeout = 10 * time.Minute
	}

	f.StringVar(&cfg.InstanceAddr, "ccbuffer.ring.instance-addr", cfg.InstanceAddr, "IP address advertised to the ring for this instance. Left empty, serve() discovers one (see -node-address-config).")
	f.IntVar(&cfg.InstancePort, "ccbuffer.ring.instance-port", cfg.InstancePort, "Port advertised to the ring for this instance.")
	f.IntVar(&cfg.NumTokens, "ccbuffer.ring.num-tokens", cfg.NumTokens, "Number of tokens this instance owns in the partition ring.")
	f.DurationVar(&cfg.HeartbeatPeriod, "ccbuffer.ring.heartbeat-period", cfg.HeartbeatPeriod, "Period at which this instance heartbeats its ring entry.")
	f.DurationVar(&cfg.WaitActiveInstanceTimeout, "ccbuffer.ring.wait-active-instance-timeout", cfg.WaitActiveInstanceTimeout, "Timeout for this instance to become ACTIVE in the ring at startup.")
}

func (cfg Config) toLifecyclerConfig(instanceID string) ring.LifecyclerConfig {
	return ring.LifecyclerConfig{
		RingConfig: ring.Config{
			KVStore:           cfg.KVStore,
			HeartbeatTimeout:  cfg.HeartbeatPeriod * 3,
			ReplicationFactor: 1,
		},
		NumTokens:       cfg.NumTokens,
		HeartbeatPeriod: cfg.HeartbeatPeriod,
		ObservePeriod:   0,
		JoinAfter:       0,
		MinReadyDuration: 0,
		FinalSleep:      0,
		Addr:            cfg.InstanceAddr,
		Port:            cfg.InstancePort,
		ID:              instanceID,
	}
}

// Ring bundles the lifecycler and the ring reader built from it, run as
// one supervised unit.
type Ring struct {
	Lifecycler *ring.Lifecycler
	Reader     ring.ReadRing

	subservices *services.Manager
}

// New builds and starts the ring lifecycler and ring reader for
// instanceID, blocking until this instance is ACTIVE. Mirrors
// MultitenantCompactor's sharding-ring bring-up in starting().
func New(ctx context.Context, cfg Config, instanceID string, logger log.Logger, reg prometheus.Registerer) (*Ring, error) {
	lifecyclerCfg := cfg.toLifecyclerConfig(instanceID)

	lifecycler, err := ring.NewLifecycler(lifecyclerCfg, ring.NewNoopFlushTransferer(), "ccbuffer", RingKey, false, logger, prometheus.WrapRegistererWithPrefix("ccbuffer_", reg))
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize buffer vnode ring lifecycler")
	}

	reader, err := ring.New(lifecyclerCfg.RingConfig, "ccbuffer", RingKey, logger, prometheus.WrapRegistererWithPrefix("ccbuffer_", reg))
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize buffer vnode ring")
	}

	subservices, err := services.NewManager(lifecycler, reader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create ring subservices manager")
	}

	if err := services.StartManagerAndAwaitHealthy(ctx, subservices); err != nil {
		return nil, errors.Wrap(err, "unable to start ring subservices")
	}

	level.Info(logger).Log("msg", "waiting until this instance is ACTIVE in the ring")
	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.WaitActiveInstanceTimeout)
	defer cancel()
	if err := ring.WaitInstanceState(ctxWithTimeout, reader, lifecycler.ID, ring.ACTIVE); err != nil {
		_ = services.StopManagerAndAwaitStopped(context.Background(), subservices)
		return nil, errors.Wrap(err, "instance did not become ACTIVE in the ring")
	}
	level.Info(logger).Log("msg", "instance is ACTIVE in the ring")

	return &Ring{Lifecycler: lifecycler, Reader: reader, subservices: subservices}, nil
}

// Stop tears down the lifecycler and ring reader.
func (r *Ring) Stop(ctx context.Context) error {
	return services.StopManagerAndAwaitStopped(ctx, r.subservices)
}
