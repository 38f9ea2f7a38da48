package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/ccbuffer/internal/buffervnode"
	"github.com/grafana/ccbuffer/internal/ccrdt"
	"github.com/grafana/ccbuffer/internal/metadata"
	"github.com/grafana/ccbuffer/internal/ownership"
	"github.com/grafana/ccbuffer/internal/publisher"
	"github.com/grafana/ccbuffer/internal/ringutil"
	"github.com/grafana/ccbuffer/internal/transport"
)

// serve brings up one ccbuffer node: the membership ring, the
// publisher, and one buffer vnode per partition, then blocks until an
// interrupt or terminate signal arrives. It mirrors the lifecycle
// MultitenantCompactor's starting/running/stopping trio implements for
// a single service, but composed here across several independently
// supervised services.Service instances.
func serve(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	reg := prometheus.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := resolveInstanceAddr(&cfg, logger); err != nil {
		return errors.Wrap(err, "failed to determine instance address")
	}

	ring, err := ringutil.New(ctx, cfg.Ring, cfg.InstanceID, logger, reg)
	if err != nil {
		return errors.Wrap(err, "failed to bring up membership ring")
	}
	defer func() {
		if err := ring.Stop(context.Background()); err != nil {
			level.Warn(logger).Log("msg", "error stopping membership ring", "err", err)
		}
	}()

	checker := ownership.NewChecker(ring.Reader, ring.Lifecycler.Addr)

	addrTable, err := cfg.peerAddrTable()
	if err != nil {
		return err
	}
	metadataClient := metadata.NewStaticClient(cfg.peerDCList())
	resolver := metadata.StaticResolver(addrTable)

	pub := publisher.New(cfg.Publisher, metadataClient, func() (transport.Socket, error) {
		return transport.Bind(cfg.Publisher.Port, resolver)
	}, logger, reg)

	registry := ccrdt.DefaultRegistry()
	engine := compactionEngine{registry: registry}

	vnodes := make([]services.Service, 0, cfg.Partitions)
	for p := uint(0); p < cfg.Partitions; p++ {
		vnodes = append(vnodes, buffervnode.New(uint32(p), cfg.BufferVnode, checker, engine, pub, logger, reg))
	}

	allServices := append([]services.Service{pub}, vnodes...)
	manager, err := services.NewManager(allServices...)
	if err != nil {
		return errors.Wrap(err, "failed to create service manager")
	}

	watcher := services.NewFailureWatcher()
	watcher.WatchManager(manager)

	if err := services.StartManagerAndAwaitHealthy(ctx, manager); err != nil {
		return errors.Wrap(err, "failed to start services")
	}
	level.Info(logger).Log("msg", "ccbuffer node is running", "instance_id", cfg.InstanceID, "partitions", cfg.Partitions)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		level.Info(logger).Log("msg", "received signal, shutting down", "signal", sig.String())
	case err := <-watcher.Chan():
		level.Error(logger).Log("msg", "a service failed, shutting down", "err", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.BufferVnode.FlushInterval*10)
	defer stopCancel()
	if err := services.StopManagerAndAwaitStopped(stopCtx, manager); err != nil {
		return errors.Wrap(err, "failed to stop services cleanly")
	}

	return nil
}

// resolveInstanceAddr fills in cfg.Ring.InstanceAddr when no flag or
// config file set one explicitly, per spec.md §4.4's address discovery:
// prefer the node-address.config file if one was given, otherwise fall
// back to this host's non-loopback interface addresses.
func resolveInstanceAddr(cfg *Config, logger log.Logger) error {
	if cfg.Ring.InstanceAddr != "" {
		return nil
	}

	if cfg.NodeAddressConfigFile != "" {
		ip, err := metadata.ReadPublicAddress(cfg.NodeAddressConfigFile)
		if err != nil {
			return errors.Wrap(err, "failed to read node address config")
		}
		cfg.Ring.InstanceAddr = ip.String()
		level.Info(logger).Log("msg", "discovered instance address from node address config", "addr", cfg.Ring.InstanceAddr)
		return nil
	}

	addrs, err := metadata.BroadcastCapableAddresses()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate broadcast-capable addresses")
	}
	if len(addrs) == 0 {
		return errors.New("no node-address-config given and no non-loopback interface address found")
	}
	cfg.Ring.InstanceAddr = addrs[0]
	level.Info(logger).Log("msg", "discovered instance address from network interfaces", "addr", cfg.Ring.InstanceAddr)
	return nil
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
