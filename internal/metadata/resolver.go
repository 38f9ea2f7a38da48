package metadata

import "github.com/pkg/errors"

// StaticResolver maps a peer datacenter id to a dialable network address
// from a fixed, in-memory table. It is the transport.Resolver counterpart
// to StaticClient, standing in for whatever address-book service (a
// service-discovery system, a gossip ring, another metadata store) a
// deployment wires in.
type StaticResolver map[string]string

// Resolve looks up dcid's dial address.
func (r StaticResolver) Resolve(dcid string) (string, error) {
	addr, ok := r[dcid]
	if !ok {
		return "", errors.Errorf("no known address for datacenter %q", dcid)
	}
	return addr, nil
}
