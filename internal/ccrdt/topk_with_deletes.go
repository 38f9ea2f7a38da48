package ccrdt

// TopKWithDeletesType is "topk_with_deletes": like topk, but elements can
// be removed. A delete must survive compaction with the add it removes
// (a tombstone is still observable to replicas that haven't seen the
// add), so an add/delete pair compacts to the delete rather than
// cancelling outright — see spec.md §8 scenario 3.
const TopKWithDeletesType Type = "topk_with_deletes"

// TopKDel removes zero or more elements, keyed by element key.
type TopKDel struct {
	Elems map[string]TopKElem
}

// TopKWithDeletesOp tags which of Add/Del this operation carries.
type TopKWithDeletesOp struct {
	Add *TopKAdd
	Del *TopKDel
}

type topKWithDeletes struct{}

// NewTopKWithDeletes returns the Compactable for "topk_with_deletes".
func NewTopKWithDeletes() Compactable { return topKWithDeletes{} }

func (topKWithDeletes) CanCompact(older, newer Op) bool {
	o, ok1 := older.(TopKWithDeletesOp)
	n, ok2 := newer.(TopKWithDeletesOp)
	if !ok1 || !ok2 {
		return false
	}

	switch {
	case o.Add != nil && n.Add != nil:
		return o.Add.Elem.Key == n.Add.Elem.Key
	case o.Add != nil && n.Del != nil:
		_, deleted := n.Del.Elems[o.Add.Elem.Key]
		return deleted
	default:
		return false
	}
}

func (topKWithDeletes) Compact(older, newer Op) (Op, bool) {
	o := older.(TopKWithDeletesOp)
	n := newer.(TopKWithDeletesOp)

	switch {
	case o.Add != nil && n.Add != nil:
		if n.Add.Score > o.Add.Score {
			return TopKWithDeletesOp{Add: n.Add}, false
		}
		return TopKWithDeletesOp{Add: o.Add}, false
	case o.Add != nil && n.Del != nil:
		return TopKWithDeletesOp{Del: n.Del}, false
	default:
		return nil, true
	}
}
