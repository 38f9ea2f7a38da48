package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grafana/ccbuffer/internal/txn"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := txn.Txn{
		DCID:        "dc1",
		Partition:   7,
		PrevLogOpID: 41,
		Snapshot:    100,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		LogRecords: []txn.LogRecord{
			{
				Version:  1,
				OpNumber: 1,
				LogOperation: txn.LogOperation{
					TxID: "tx1",
					Kind: txn.Update,
					Update: txn.UpdatePayload{
						Key:    "leaderboard",
						Bucket: "b1",
						Type:   "topk",
						Op:     map[string]any{"member": "alice", "score": float64(9)},
					},
				},
			},
			{
				Version:  2,
				OpNumber: 2,
				LogOperation: txn.LogOperation{
					TxID: "tx1",
					Kind: txn.Commit,
				},
			},
		},
	}

	b, err := Encode(in, "dc2")
	require.NoError(t, err)

	out, dcid, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, "dc2", dcid)
	require.Equal(t, in.DCID, out.DCID)
	require.Equal(t, in.Partition, out.Partition)
	require.Equal(t, in.Snapshot, out.Snapshot)
	require.True(t, in.Timestamp.Equal(out.Timestamp))
	require.Len(t, out.LogRecords, 2)
	require.Equal(t, "leaderboard", out.LogRecords[0].LogOperation.Update.Key)
	require.Equal(t, txn.Commit, out.LogRecords[1].LogOperation.Kind)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, _, err := Decode([]byte("not json"))
	require.Error(t, err)
}
