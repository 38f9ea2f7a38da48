package ccrdt

// TopKType is the "topk" CCRDT: a bounded set of (key, score) entries
// kept under score order, with no delete support. Two adds for the same
// element key compact into the higher-scoring one; anything else is left
// for the next pass.
const TopKType Type = "topk"

// TopKElem identifies a single scored entry in the top-k set.
type TopKElem struct {
	Key   string
	Value int
}

// TopKAdd is the only operation kind topk supports.
type TopKAdd struct {
	Score int
	Elem  TopKElem
}

// TopKOp is the op payload for the "topk" type. Add is always set; the
// type has no delete operation.
type TopKOp struct {
	Add TopKAdd
}

type topK struct{}

// NewTopK returns the Compactable for the "topk" type.
func NewTopK() Compactable { return topK{} }

func (topK) CanCompact(older, newer Op) bool {
	o, ok1 := older.(TopKOp)
	n, ok2 := newer.(TopKOp)
	if !ok1 || !ok2 {
		return false
	}
	return o.Add.Elem.Key == n.Add.Elem.Key
}

func (topK) Compact(older, newer Op) (Op, bool) {
	o := older.(TopKOp)
	n := newer.(TopKOp)

	if n.Add.Score > o.Add.Score {
		return TopKOp{Add: n.Add}, false
	}
	return TopKOp{Add: o.Add}, false
}
