package metadata

import (
	"net"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ReadPublicAddress loads the public_ip key from the node-address
// config file (spec.md §6: config/node-address.config), a small
// textual file mapping public_ip to an IPv4 4-tuple, e.g.
// public_ip = [127, 0, 0, 1].
func ReadPublicAddress(path string) (net.IP, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load node address config")
	}

	raw, ok := tree.Get("public_ip").([]interface{})
	if !ok || len(raw) != 4 {
		return nil, errors.New("public_ip must be a 4-element array of octets")
	}

	octets := make([]byte, 4)
	for i, v := range raw {
		n, ok := v.(int64)
		if !ok || n < 0 || n > 255 {
			return nil, errors.Errorf("public_ip octet %d is not a byte: %v", i, v)
		}
		octets[i] = byte(n)
	}

	return net.IPv4(octets[0], octets[1], octets[2], octets[3]), nil
}

// BroadcastCapableAddresses derives the list of non-loopback addresses
// bound to this host's network interfaces, for deployments that prefer
// interface discovery over a static config file.
func BroadcastCapableAddresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate network interfaces")
	}

	var out []string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		out = append(out, ipNet.IP.String())
	}

	return out, nil
}
