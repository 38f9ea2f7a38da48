// Package ownership answers the one question the buffer vnode needs from
// cluster membership: "does this node currently own partition P?" It
// wraps a dskit ring the same way MultitenantCompactor's
// instanceOwnsTokenInRing does, hashing the partition id to a ring token
// and checking whether the resulting instance set names this node.
package ownership

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/grafana/dskit/ring"
	"github.com/pkg/errors"
)

// Op selects active instances only, matching compactor.go's RingOp.
var Op = ring.NewOp([]ring.InstanceState{ring.ACTIVE}, nil)

// Checker answers partition-ownership queries against a dskit ring.
type Checker struct {
	ring ring.ReadRing
	addr string
}

// NewChecker builds a Checker for the local instance address addr
// against r.
func NewChecker(r ring.ReadRing, addr string) *Checker {
	return &Checker{ring: r, addr: addr}
}

// Owns reports whether this node currently owns partition.
func (c *Checker) Owns(partition uint32) (bool, error) {
	hasher := fnv.New32a()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], partition)
	if _, err := hasher.Write(buf[:]); err != nil {
		return false, errors.Wrap(err, "failed to hash partition id")
	}

	rs, err := c.ring.Get(hasher.Sum32(), Op, nil, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to resolve partition owner")
	}

	if len(rs.Instances) != 1 {
		return false, fmt.Errorf("unexpected number of ring instances for partition (expected 1, got %d)", len(rs.Instances))
	}

	return rs.Instances[0].Addr == c.addr, nil
}
