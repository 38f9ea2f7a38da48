// Package buffervnode implements the buffer vnode (component C): a
// per-partition, strictly-sequential actor that accumulates outgoing
// transactions between timer-driven flushes, checks ring ownership on
// every re-arm, and hands flushed batches to the compaction engine and
// then the publisher.
//
// The spec's host language expresses the vnode as a single-threaded
// actor whose mailbox already serializes buffer/1 against the timer
// tick; Go has no built-in mailbox, so a mutex plays that role here,
// guarding exactly the state the actor would otherwise own exclusively.
package buffervnode

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/ccbuffer/internal/txn"
	ccblog "github.com/grafana/ccbuffer/internal/util/log"
)

var errFlushIntervalNotPositive = errors.New("buffer vnode flush interval must be positive")

// Ownership answers whether this node currently owns a partition.
type Ownership interface {
	Owns(partition uint32) (bool, error)
}

// Engine is the pure compaction engine's capability, as consumed by the
// vnode's detached flush worker.
type Engine interface {
	Compact(input []txn.Txn) []txn.Txn
}

// Broadcaster is the publisher's capability, as consumed by the vnode's
// detached flush worker.
type Broadcaster interface {
	Broadcast(ctx context.Context, txns []txn.Txn)
}

// Vnode is the buffer vnode for one partition.
type Vnode struct {
	services.Service

	partition uint32
	cfg       Config
	ownership Ownership
	engine    Engine
	publisher Broadcaster
	logger    log.Logger
	factory   txn.Factory

	mu     sync.Mutex
	buffer []txn.Txn

	flushesTotal          prometheus.Counter
	txnsBufferedTotal     prometheus.Counter
	compactionPanicsTotal prometheus.Counter
	bufferedGauge         prometheus.Gauge
}

// New builds a Vnode for partition, wired to the given ownership
// checker, compaction engine and publisher.
func New(partition uint32, cfg Config, ownership Ownership, engine Engine, publisher Broadcaster, logger log.Logger, reg prometheus.Registerer) *Vnode {
	v := &Vnode{
		partition: partition,
		cfg:       cfg,
		ownership: ownership,
		engine:    engine,
		publisher: publisher,
		logger:    ccblog.WithPartition(ccblog.WithComponent(logger, "buffer_vnode"), partition),

		flushesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "ccbuffer_vnode_flushes_total",
			Help:        "Total number of non-empty buffer flushes performed by this vnode.",
			ConstLabels: prometheus.Labels{"partition": partitionLabel(partition)},
		}),
		txnsBufferedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "ccbuffer_vnode_txns_buffered_total",
			Help:        "Total number of transactions accepted by this vnode's buffer.",
			ConstLabels: prometheus.Labels{"partition": partitionLabel(partition)},
		}),
		compactionPanicsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "ccbuffer_vnode_compaction_panics_total",
			Help:        "Total number of times this vnode's compaction worker recovered from a panicking CCRDT callback.",
			ConstLabels: prometheus.Labels{"partition": partitionLabel(partition)},
		}),
		bufferedGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "ccbuffer_vnode_buffered_txns",
			Help:        "Number of transactions currently held in this vnode's buffer, awaiting the next flush.",
			ConstLabels: prometheus.Labels{"partition": partitionLabel(partition)},
		}),
	}

	v.Service = services.NewBasicService(nil, v.running, nil)
	return v
}

func partitionLabel(partition uint32) string {
	return strconv.FormatUint(uint64(partition), 10)
}

// Buffer appends t to this vnode's buffer, so the buffer is already in
// commit order and a flush needs no reversal (see foldGroup's doc
// comment in the compaction package for the matching observation on the
// fold). It always accepts: there is no capacity limit in this
// specification.
func (v *Vnode) Buffer(t txn.Txn) {
	v.mu.Lock()
	v.buffer = append(v.buffer, t)
	n := len(v.buffer)
	v.mu.Unlock()

	v.txnsBufferedTotal.Inc()
	v.bufferedGauge.Set(float64(n))
}

// running is the vnode's actor loop. The timer is armed only if this
// node owns the partition at start (spec.md §3 Lifecycle); once armed,
// every tick re-checks ownership before flushing, and losing ownership
// stops the loop (and thus further re-arms) within that tick (P10).
func (v *Vnode) running(ctx context.Context) error {
	owned, err := v.ownership.Owns(v.partition)
	if err != nil {
		level.Warn(v.logger).Log("msg", "failed to check partition ownership at startup, not arming flush timer", "err", err)
		return nil
	}
	if !owned {
		level.Info(v.logger).Log("msg", "partition not owned by this node, not arming flush timer")
		return nil
	}

	ticker := time.NewTicker(v.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			quiesce := v.tick(ctx)
			if quiesce {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// tick implements one timer expiry: spec.md §4.3's Internal tick. It
// returns true when the vnode should stop re-arming because it no
// longer owns the partition (the new owner's vnode init path is
// responsible for buffering from here on).
func (v *Vnode) tick(ctx context.Context) (quiesce bool) {
	owned, err := v.ownership.Owns(v.partition)
	if err != nil {
		level.Warn(v.logger).Log("msg", "failed to check partition ownership, keeping buffer armed", "err", err)
		return false
	}
	if !owned {
		level.Info(v.logger).Log("msg", "partition ownership lost, quiescing buffer vnode")
		return true
	}

	v.mu.Lock()
	if len(v.buffer) == 0 {
		v.mu.Unlock()
		return false
	}
	snapshot := v.buffer
	v.buffer = nil
	v.mu.Unlock()
	v.bufferedGauge.Set(0)

	v.flushesTotal.Inc()
	go v.compactAndBroadcast(ctx, snapshot)

	return false
}

// compactAndBroadcast is the detached flush worker: it owns its input
// snapshot exclusively and does not touch vnode state. It runs
// concurrently with subsequent Buffer calls, which append to the new,
// now-empty buffer.
func (v *Vnode) compactAndBroadcast(ctx context.Context, snapshot []txn.Txn) {
	batchID := v.factory.NewBatchID(time.Now())
	batchLogger := ccblog.WithComponent(v.logger, "flush")

	out := v.safeCompact(snapshot)
	if len(out) == 0 {
		return
	}

	level.Debug(batchLogger).Log("msg", "broadcasting compacted flush batch", "batch_id", batchID, "txns_in", len(snapshot), "txns_out", len(out))
	v.publisher.Broadcast(ctx, out)
}

// safeCompact validates the batch and runs the compaction engine,
// falling back to the uncompacted snapshot if a CCRDT type callback
// panics (spec.md §7, error kind 5) and dropping the batch entirely if
// it is malformed (error kind 4).
func (v *Vnode) safeCompact(snapshot []txn.Txn) (out []txn.Txn) {
	defer func() {
		if r := recover(); r != nil {
			v.compactionPanicsTotal.Inc()
			level.Warn(v.logger).Log("msg", "ccrdt compaction callback panicked, broadcasting uncompacted batch", "panic", r)
			out = snapshot
		}
	}()

	for _, t := range snapshot {
		if err := t.Validate(); err != nil {
			level.Error(ccblog.WithTxID(v.logger, t.TxID())).Log("msg", "dropping malformed transaction batch", "err", err)
			return nil
		}
	}

	return v.engine.Compact(snapshot)
}
