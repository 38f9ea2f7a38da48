// Package txn holds the transaction/log-record data model consumed by the
// compaction engine, the buffer vnode, and the publisher. None of these
// types know anything about CCRDT algebra; a LogRecord's Op is opaque and
// is only interpreted through the ccrdt package's dispatch table.
package txn

import (
	"time"

	"github.com/pkg/errors"
)

// Type identifies the data type carried by an update operation. It is an
// opaque string as far as this package is concerned; whether it names a
// CCRDT is decided by the ccrdt registry.
type Type string

// Op is an opaque operation payload. Its meaning is defined entirely by
// its associated Type; the compaction engine never inspects it directly,
// only passes it to the Type's CanCompact/Compact functions.
type Op any

// Kind is the closed set of log-operation variants.
type Kind int

const (
	// Update carries a CCRDT or plain data-type mutation.
	Update Kind = iota
	Prepare
	Commit
	Abort
)

func (k Kind) String() string {
	switch k {
	case Update:
		return "update"
	case Prepare:
		return "prepare"
	case Commit:
		return "commit"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// UpdatePayload is the payload carried by a Kind == Update log operation.
type UpdatePayload struct {
	Key    string
	Bucket string
	Type   Type
	Op     Op
}

// LogOperation is the tagged-union body of a LogRecord: {tx_id, op_type, payload}.
// Only Update carries a payload; the other variants carry just their tx id.
type LogOperation struct {
	TxID   string
	Kind   Kind
	Update UpdatePayload // meaningful iff Kind == Update
}

// LogRecord is one entry in a transaction's log.
type LogRecord struct {
	Version        uint64
	OpNumber       uint64
	BucketOpNumber uint64
	LogOperation   LogOperation
}

// IsUpdate reports whether this record carries an update operation.
func (r LogRecord) IsUpdate() bool {
	return r.LogOperation.Kind == Update
}

// IsTerminal reports whether this record ends a transaction.
func (r LogRecord) IsTerminal() bool {
	return r.LogOperation.Kind == Commit || r.LogOperation.Kind == Abort
}

// Txn is an inter-datacenter transaction: a transaction's log records
// plus the metadata needed to place it in a partition's replication
// stream.
type Txn struct {
	DCID        string
	Partition   uint32
	PrevLogOpID uint64
	Snapshot    uint64
	Timestamp   time.Time
	LogRecords  []LogRecord
}

// TxID returns the transaction id shared by all of this transaction's log
// records. In well-formed input every record shares one tx id, so reading
// it off the first record is sufficient; Validate checks that invariant.
func (t Txn) TxID() string {
	if len(t.LogRecords) == 0 {
		return ""
	}
	return t.LogRecords[0].LogOperation.TxID
}

// Validate checks the structural invariants spec'd for a Txn: a non-empty
// log ending in exactly one terminal record, with every record sharing a
// single, non-empty tx id. A transaction failing this check is a
// programmer error upstream (malformed log) rather than something this
// package can repair.
func (t Txn) Validate() error {
	if len(t.LogRecords) == 0 {
		return errors.New("txn has no log records")
	}

	last := t.LogRecords[len(t.LogRecords)-1]
	if !last.IsTerminal() {
		return errors.New("txn log does not end with a commit or abort record")
	}

	txID := t.LogRecords[0].LogOperation.TxID
	if txID == "" {
		return errors.New("txn log record missing tx id")
	}

	for _, r := range t.LogRecords {
		if r.LogOperation.TxID != txID {
			return errors.New("txn log records have mismatched tx ids")
		}
		if r.LogOperation.Kind == Update {
			if r.LogOperation.Update.Key == "" {
				return errors.New("update record missing key")
			}
			if r.LogOperation.Update.Type == "" {
				return errors.New("update record missing type")
			}
		}
	}

	terminalCount := 0
	for _, r := range t.LogRecords {
		if r.IsTerminal() {
			terminalCount++
		}
	}
	if terminalCount != 1 {
		return errors.Errorf("txn log has %d terminal records, want exactly 1", terminalCount)
	}

	return nil
}
