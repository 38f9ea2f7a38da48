// Package metadata provides the external metadata-service boundary from
// spec.md §6: the peer-datacenter list read on every broadcast, and the
// node-address configuration file backing the publisher's address
// discovery.
package metadata

import "context"

// Client reads the current set of peer datacenters:
// read(dc_list) -> {ok, [dcid]} | _. Any failure is the caller's
// concern to fail open on (spec.md §7, error kind 3): Read returns an
// error and the caller treats that as an empty list.
type Client interface {
	Read(ctx context.Context) ([]string, error)
}

// StaticClient is a Client backed by a fixed, in-memory list of peer
// datacenters. It stands in for whatever real metadata store (etcd,
// Consul, a gossip-backed KV ring) a deployment wires in; the core only
// depends on the Client interface.
type StaticClient struct {
	dcs []string
}

// NewStaticClient returns a Client that always answers with dcs.
func NewStaticClient(dcs []string) *StaticClient {
	cp := make([]string, len(dcs))
	copy(cp, dcs)
	return &StaticClient{dcs: cp}
}

func (c *StaticClient) Read(context.Context) ([]string, error) {
	out := make([]string, len(c.dcs))
	copy(out, c.dcs)
	return out, nil
}
