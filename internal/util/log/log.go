// Package log collects the small set of log.With wrappers shared across
// ccbuffer's components, mirroring the way compactor.go and
// distributor.go each tag their logger with a fixed set of context
// key/value pairs at construction time rather than threading them
// through every call site.
package log

import (
	"github.com/go-kit/log"
)

// WithComponent tags logger with the component name that owns it, e.g.
// "buffer_vnode", "publisher", "compactor".
func WithComponent(logger log.Logger, component string) log.Logger {
	return log.With(logger, "component", component)
}

// WithPartition tags logger with the partition a buffer vnode instance is
// responsible for.
func WithPartition(logger log.Logger, partition uint32) log.Logger {
	return log.With(logger, "partition", partition)
}

// WithDC tags logger with the datacenter id a log line concerns, either
// this node's own dc_id or a peer being broadcast to.
func WithDC(logger log.Logger, dcid string) log.Logger {
	return log.With(logger, "dc", dcid)
}

// WithTxID tags logger with the transaction id a log line concerns.
func WithTxID(logger log.Logger, txID string) log.Logger {
	return log.With(logger, "tx_id", txID)
}
