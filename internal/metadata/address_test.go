package metadata

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node-address.config")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadPublicAddressParsesOctets(t *testing.T) {
	path := writeConfig(t, "public_ip = [127, 0, 0, 1]\n")

	ip, err := ReadPublicAddress(path)
	require.NoError(t, err)
	require.True(t, net.IPv4(127, 0, 0, 1).Equal(ip))
}

func TestReadPublicAddressRejectsWrongArity(t *testing.T) {
	path := writeConfig(t, "public_ip = [127, 0, 1]\n")

	_, err := ReadPublicAddress(path)
	require.Error(t, err)
}

func TestReadPublicAddressRejectsOutOfRangeOctet(t *testing.T) {
	path := writeConfig(t, "public_ip = [127, 0, 0, 999]\n")

	_, err := ReadPublicAddress(path)
	require.Error(t, err)
}

func TestReadPublicAddressRejectsMissingFile(t *testing.T) {
	_, err := ReadPublicAddress(filepath.Join(t.TempDir(), "does-not-exist.config"))
	require.Error(t, err)
}

func TestBroadcastCapableAddressesExcludesLoopback(t *testing.T) {
	addrs, err := BroadcastCapableAddresses()
	require.NoError(t, err)
	for _, a := range addrs {
		require.NotEqual(t, "127.0.0.1", a)
	}
}
