package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticResolverResolvesKnownDC(t *testing.T) {
	r := StaticResolver{"dc1": "10.0.0.1:9000"}

	addr, err := r.Resolve("dc1")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:9000", addr)
}

func TestStaticResolverRejectsUnknownDC(t *testing.T) {
	r := StaticResolver{"dc1": "10.0.0.1:9000"}

	_, err := r.Resolve("dc2")
	require.Error(t, err)
}
