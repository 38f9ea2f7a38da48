package ccrdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_IsCCRDT(t *testing.T) {
	r := DefaultRegistry()

	require.True(t, r.IsCCRDT(TopKType))
	require.True(t, r.IsCCRDT(TopKWithDeletesType))
	require.True(t, r.IsCCRDT(AverageType))
	require.False(t, r.IsCCRDT(NotACCRDTType))
	require.False(t, r.IsCCRDT(Type("unregistered")))
}

func TestTopKWithDeletes_AddThenDeleteCompactsToDelete(t *testing.T) {
	c := NewTopKWithDeletes()

	add := TopKWithDeletesOp{Add: &TopKAdd{Score: 5, Elem: TopKElem{Key: "foo", Value: 1}}}
	del := TopKWithDeletesOp{Del: &TopKDel{Elems: map[string]TopKElem{"foo": {Key: "foo", Value: 1}}}}

	require.True(t, c.CanCompact(add, del))
	merged, noop := c.Compact(add, del)
	require.False(t, noop)
	require.Equal(t, del, merged)
}

func TestTopKWithDeletes_UnrelatedDeleteDoesNotCompact(t *testing.T) {
	c := NewTopKWithDeletes()

	add := TopKWithDeletesOp{Add: &TopKAdd{Score: 5, Elem: TopKElem{Key: "foo", Value: 1}}}
	del := TopKWithDeletesOp{Del: &TopKDel{Elems: map[string]TopKElem{"bar": {Key: "bar", Value: 2}}}}

	require.False(t, c.CanCompact(add, del))
}

func TestAverage_TwoAddsSum(t *testing.T) {
	c := NewAverage()

	a := AverageOp{Kind: AverageAdd, Sum: 100, Count: 2}
	b := AverageOp{Kind: AverageAdd, Sum: 10, Count: 1}

	require.True(t, c.CanCompact(a, b))
	merged, noop := c.Compact(a, b)
	require.False(t, noop)
	require.Equal(t, AverageOp{Kind: AverageAdd, Sum: 110, Count: 3}, merged)
}

func TestAverage_AddThenExactRemoveCancels(t *testing.T) {
	c := NewAverage()

	add := AverageOp{Kind: AverageAdd, Sum: 42, Count: 1}
	remove := AverageOp{Kind: AverageRemove, Sum: 42, Count: 1}

	require.True(t, c.CanCompact(add, remove))
	_, noop := c.Compact(add, remove)
	require.True(t, noop)
}
