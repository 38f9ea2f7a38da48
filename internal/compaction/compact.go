// Package compaction implements the compaction engine (component B): a
// pure function that rewrites a batch of transactions by collapsing
// semantically redundant CCRDT update operations, per spec.md §4.2. It
// performs no I/O, no logging, and no time reads, so it can be property
// tested and deterministically replayed; the buffer vnode is the
// effectful shell around it.
package compaction

import (
	"github.com/grafana/ccbuffer/internal/ccrdt"
	"github.com/grafana/ccbuffer/internal/txn"
)

// groupKey identifies a per-(key, bucket) CCRDT update group.
type groupKey struct {
	key    string
	bucket string
}

type group struct {
	ccrdtType txn.Type
	records   []txn.LogRecord
}

// Compact rewrites input into an equivalent, minimal sequence of
// transactions. It implements spec.md §4.2's fast paths and main
// algorithm:
//
//   - empty input returns empty output (P1);
//   - input with no CCRDT update returns input unchanged, untouched (P2);
//   - otherwise every transaction in input collapses into exactly one
//     output transaction (P3), whose prev_log_opid comes from input's
//     first transaction and whose other metadata and terminal records
//     come from input's last transaction (P4), with all update tx ids
//     rewritten to the target tx id (P5) and record ordering of
//     non-CCRDT updates, then compacted CCRDT updates grouped by
//     (key, bucket), then the last transaction's non-update records (P6).
func Compact(registry *ccrdt.Registry, input []txn.Txn) []txn.Txn {
	if len(input) == 0 {
		return input
	}

	if !containsCCRDTUpdate(registry, input) {
		return input
	}

	targetTxID := input[len(input)-1].TxID()

	groups := make(map[groupKey]*group)
	var groupOrder []groupKey
	var otherUpdates []txn.LogRecord
	var lastCleaned txn.Txn

	for i, t := range input {
		kept := make([]txn.LogRecord, 0, len(t.LogRecords))

		for _, rec := range t.LogRecords {
			rec.LogOperation.TxID = targetTxID

			if rec.LogOperation.Kind != txn.Update {
				kept = append(kept, rec)
				continue
			}

			if registry.IsCCRDT(rec.LogOperation.Update.Type) {
				gk := groupKey{key: rec.LogOperation.Update.Key, bucket: rec.LogOperation.Update.Bucket}
				g, ok := groups[gk]
				if !ok {
					g = &group{ccrdtType: rec.LogOperation.Update.Type}
					groups[gk] = g
					groupOrder = append(groupOrder, gk)
				}
				g.records = append(g.records, rec)
				continue
			}

			otherUpdates = append(otherUpdates, rec)
		}

		cleaned := t
		cleaned.LogRecords = kept
		if i == len(input)-1 {
			lastCleaned = cleaned
		}
	}

	if len(groups) == 0 {
		return input
	}

	ccrdtOps := make([]txn.LogRecord, 0)
	for _, gk := range groupOrder {
		g := groups[gk]
		compactable, ok := registry.Lookup(g.ccrdtType)
		if !ok {
			// Was classified as CCRDT at grouping time; the registry is
			// read-only from this function's point of view, so this
			// would indicate a racing unregister and is defensive only.
			ccrdtOps = append(ccrdtOps, g.records...)
			continue
		}
		ccrdtOps = append(ccrdtOps, foldGroup(compactable, g.records)...)
	}

	out := lastCleaned
	out.PrevLogOpID = input[0].PrevLogOpID

	merged := make([]txn.LogRecord, 0, len(otherUpdates)+len(ccrdtOps)+len(lastCleaned.LogRecords))
	merged = append(merged, otherUpdates...)
	merged = append(merged, ccrdtOps...)
	merged = append(merged, lastCleaned.LogRecords...)
	out.LogRecords = merged

	return []txn.Txn{out}
}

func containsCCRDTUpdate(registry *ccrdt.Registry, input []txn.Txn) bool {
	for _, t := range input {
		for _, r := range t.LogRecords {
			if r.LogOperation.Kind == txn.Update && registry.IsCCRDT(r.LogOperation.Update.Type) {
				return true
			}
		}
	}
	return false
}

// foldGroup is the per-key compaction fold (spec.md §4.2.1). records
// must all share one (key, bucket, type) and be in original commit
// order. For each incoming record, it searches the accumulator from
// most-recent to oldest for exactly one compactable partner; a Noop
// result discards both, otherwise the older record's op is replaced and
// the newer one dropped. Records not merged are appended in order,
// which is already the accumulator's natural iteration order: unlike a
// cons-list fold that must prepend-then-reverse, a Go slice's append
// keeps records in commit order throughout, so no final reversal step
// is needed here.
func foldGroup(c ccrdt.Compactable, records []txn.LogRecord) []txn.LogRecord {
	acc := make([]txn.LogRecord, 0, len(records))

	for _, newer := range records {
		merged := false

		for i := len(acc) - 1; i >= 0; i-- {
			older := acc[i]
			if !c.CanCompact(older.LogOperation.Update.Op, newer.LogOperation.Update.Op) {
				continue
			}

			mergedOp, noop := c.Compact(older.LogOperation.Update.Op, newer.LogOperation.Update.Op)
			if noop {
				acc = append(acc[:i], acc[i+1:]...)
			} else {
				older.LogOperation.Update.Op = mergedOp
				acc[i] = older
			}
			merged = true
			break
		}

		if !merged {
			acc = append(acc, newer)
		}
	}

	return acc
}
