package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFactoryNewTxIDIsUnique(t *testing.T) {
	var f Factory
	a, b := f.NewTxID(), f.NewTxID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestFactoryNewBatchIDSortsByCreationTime(t *testing.T) {
	var f Factory
	t0 := time.Unix(1700000000, 0).UTC()
	t1 := t0.Add(time.Second)

	earlier := f.NewBatchID(t0)
	later := f.NewBatchID(t1)

	require.Less(t, earlier, later)
}
