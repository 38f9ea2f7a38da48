// Package publisher implements the publisher (component D): the
// singleton, per-node broadcaster that owns one outbound publish
// endpoint and fans transactions out to peer datacenters. It is built
// as a dskit services.Service the same way MultitenantCompactor and
// Distributor are: starting() binds the resource whose failure is
// fatal (the socket), running() serves for the service's lifetime, and
// stopping() tears the resource down.
package publisher

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"

	"github.com/grafana/ccbuffer/internal/metadata"
	"github.com/grafana/ccbuffer/internal/transport"
	"github.com/grafana/ccbuffer/internal/txn"
	ccblog "github.com/grafana/ccbuffer/internal/util/log"
)

// metadataReadBackoff bounds the retry attempted before a broadcast
// fails open on a metadata-service read error (spec.md §7, error kind
// 3), grounded on compactUserWithRetries's backoff.Config use.
var metadataReadBackoff = backoff.Config{
	MinBackoff: 10 * time.Millisecond,
	MaxBackoff: 200 * time.Millisecond,
	MaxRetries: 3,
}

// SocketFactory binds the publisher's outbound endpoint. A bind failure
// here is fatal (spec.md §7, error kind 6): the publisher service never
// becomes Running.
type SocketFactory func() (transport.Socket, error)

// TxnTuple pairs the two serialization fidelities BroadcastTuple fans
// out: Full carries the complete transaction (sent to the replication
// factor's full peer set), Short carries a reduced form sent to the
// remaining peers, which only need the resulting state, not full causal
// metadata.
type TxnTuple struct {
	Short []txn.Txn
	Full  []txn.Txn
}

// Publisher is the per-node singleton broadcaster.
type Publisher struct {
	services.Service

	cfg           Config
	metadata      metadata.Client
	socketFactory SocketFactory
	logger        log.Logger

	socket transport.Socket

	broadcastsTotal        *prometheus.CounterVec
	broadcastFailuresTotal *prometheus.CounterVec
	inFlight               atomic.Int64
}

// New builds a Publisher. The socket itself is not bound until the
// service starts.
func New(cfg Config, metadataClient metadata.Client, socketFactory SocketFactory, logger log.Logger, reg prometheus.Registerer) *Publisher {
	p := &Publisher{
		cfg:           cfg,
		metadata:      metadataClient,
		socketFactory: socketFactory,
		logger:        ccblog.WithComponent(logger, "publisher"),

		broadcastsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ccbuffer_publisher_broadcasts_total",
			Help: "Total number of transactions successfully emitted to a peer datacenter.",
		}, []string{"dcid"}),
		broadcastFailuresTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ccbuffer_publisher_broadcast_failures_total",
			Help: "Total number of transactions that failed to emit to a peer datacenter.",
		}, []string{"dcid"}),
	}

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)
	return p
}

func (p *Publisher) starting(context.Context) error {
	socket, err := p.socketFactory()
	if err != nil {
		return errors.Wrap(err, "failed to bind publisher socket")
	}
	p.socket = socket
	return nil
}

func (p *Publisher) running(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (p *Publisher) stopping(_ error) error {
	if p.socket == nil {
		return nil
	}
	return p.socket.Close()
}

// Broadcast serializes txn onto the wire and emits it to every peer
// datacenter currently in the metadata service's DC list (spec.md
// §4.4). An empty list, whether because there genuinely are no peers or
// because the metadata read failed, is a no-op (error kinds 2 and 3).
// Per-DC send failures are logged and swallowed; other DCs are still
// attempted (error kind 1).
func (p *Publisher) Broadcast(ctx context.Context, txns []txn.Txn) {
	if len(txns) == 0 {
		return
	}

	dcs, err := p.readDCList(ctx)
	if err != nil {
		level.Warn(p.logger).Log("msg", "metadata read failed, treating as empty datacenter list for this broadcast", "err", err)
	}
	if len(dcs) == 0 {
		return
	}

	p.inFlight.Inc()
	defer p.inFlight.Dec()

	for _, t := range txns {
		for _, dc := range dcs {
			p.emit(ctx, t, dc)
		}
	}
}

// BroadcastTuple implements the two-tier fan-out from spec.md §4.4:
// shuffle the DC list, send the full transaction to a prefix of size
// R-1 and the short transaction to the remainder. If the DC list has
// fewer than R-1 members, every DC lands in the full group and the
// short group is empty.
func (p *Publisher) BroadcastTuple(ctx context.Context, t TxnTuple) {
	dcs, err := p.readDCList(ctx)
	if err != nil {
		level.Warn(p.logger).Log("msg", "metadata read failed, treating as empty datacenter list for this broadcast", "err", err)
	}
	if len(dcs) == 0 {
		return
	}

	rand.Shuffle(len(dcs), func(i, j int) { dcs[i], dcs[j] = dcs[j], dcs[i] })

	splitAt := p.cfg.ReplicationFactor - 1
	if splitAt > len(dcs) {
		splitAt = len(dcs)
	}
	full, short := dcs[:splitAt], dcs[splitAt:]

	p.inFlight.Inc()
	defer p.inFlight.Dec()

	for _, tx := range t.Full {
		for _, dc := range full {
			p.emit(ctx, tx, dc)
		}
	}
	for _, tx := range t.Short {
		for _, dc := range short {
			p.emit(ctx, tx, dc)
		}
	}
}

// readDCList reads the peer datacenter list, retrying transient
// failures with a bounded backoff before giving up; the caller treats a
// returned error as "fail open to an empty list" (spec.md §7, error
// kind 3).
func (p *Publisher) readDCList(ctx context.Context) ([]string, error) {
	var lastErr error

	retries := backoff.New(ctx, metadataReadBackoff)
	for retries.Ongoing() {
		dcs, err := p.metadata.Read(ctx)
		if err == nil {
			return dcs, nil
		}
		lastErr = err
		retries.Wait()
	}

	if lastErr == nil {
		lastErr = retries.Err()
	}
	return nil, lastErr
}

func (p *Publisher) emit(ctx context.Context, t txn.Txn, dc string) {
	dcLogger := ccblog.WithDC(p.logger, dc)

	payload, err := transport.Encode(t, dc)
	if err != nil {
		level.Error(dcLogger).Log("msg", "failed to encode transaction envelope", "err", err)
		return
	}

	if err := p.socket.Send(ctx, dc, payload); err != nil {
		p.broadcastFailuresTotal.WithLabelValues(dc).Inc()
		level.Warn(dcLogger).Log("msg", "publish to peer datacenter failed", "err", err)
		return
	}

	p.broadcastsTotal.WithLabelValues(dc).Inc()
}
