package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticClientReadReturnsConfiguredList(t *testing.T) {
	c := NewStaticClient([]string{"dc1", "dc2"})

	dcs, err := c.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"dc1", "dc2"}, dcs)
}

func TestStaticClientReadReturnsDefensiveCopy(t *testing.T) {
	c := NewStaticClient([]string{"dc1", "dc2"})

	dcs, err := c.Read(context.Background())
	require.NoError(t, err)
	dcs[0] = "tampered"

	again, err := c.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, "dc1", again[0])
}

func TestStaticClientReadOnEmptyListReturnsEmpty(t *testing.T) {
	c := NewStaticClient(nil)

	dcs, err := c.Read(context.Background())
	require.NoError(t, err)
	require.Empty(t, dcs)
}
