package txn

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

// Factory generates the ids that a real upstream transaction log would
// assign: a globally unique tx_id per transaction, and a creation-time
// sortable batch id for groups of transactions buffered together (e.g.
// a flush batch), used by callers that need to correlate a broadcast
// batch across logs without re-deriving it from timestamps.
type Factory struct{}

// NewTxID returns a fresh, globally unique transaction id.
func (Factory) NewTxID() string {
	return uuid.NewString()
}

// NewBatchID returns a monotonically-sortable id for a batch created at
// t, suitable for correlating a buffer vnode's flush across logs;
// unlike NewTxID, ids from successive calls with increasing t sort in
// creation order.
func (Factory) NewBatchID(t time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(t), rand.Reader)
	return id.String()
}
