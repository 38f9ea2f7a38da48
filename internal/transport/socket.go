package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// Socket is the publisher's one outbound endpoint: create_bind_socket(PUB,
// port) from spec.md §6. Send delivers a pre-encoded envelope to a named
// peer datacenter; Close releases the bound resources.
type Socket interface {
	Send(ctx context.Context, dcid string, payload []byte) error
	Close() error
}

// Resolver maps a peer datacenter id to a dialable network address.
// Cluster membership and datacenter address books are external
// collaborators per spec.md §1; this is the seam a caller plugs one
// into.
type Resolver interface {
	Resolve(dcid string) (string, error)
}

// tcpSocket is a PUB-style socket: one bound local endpoint, lazily
// dialing and caching one connection per peer datacenter. It is the
// concrete, minimal implementation of the transport boundary the spec
// explicitly puts out of scope; no example in this module's lineage
// demonstrates a dedicated pub/sub socket library, so this uses the
// standard library's net package directly.
type tcpSocket struct {
	listener net.Listener
	resolver Resolver

	mu    sync.Mutex
	conns map[string]net.Conn
}

// Bind opens a listening TCP socket on port (the "PUB" bind point) and
// returns a Socket that sends to peers resolved through resolver.
// Binding failure here is fatal per spec.md §7, error kind 6: the
// publisher refuses to start.
func Bind(port int, resolver Resolver) (Socket, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind publisher socket")
	}

	s := &tcpSocket{
		listener: l,
		resolver: resolver,
		conns:    make(map[string]net.Conn),
	}
	go s.acceptLoop()
	return s, nil
}

// acceptLoop drains inbound connections. The publisher is a pure
// outbound broadcaster; any accepted connection is a peer's own publish
// endpoint, which this module does not consume, so it is simply closed.
func (s *tcpSocket) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}

func (s *tcpSocket) Send(ctx context.Context, dcid string, payload []byte) error {
	conn, err := s.connFor(dcid)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if _, err := conn.Write(header[:]); err != nil {
		s.dropConn(dcid)
		return errors.Wrapf(err, "failed to write envelope header to %s", dcid)
	}
	if _, err := conn.Write(payload); err != nil {
		s.dropConn(dcid)
		return errors.Wrapf(err, "failed to write envelope to %s", dcid)
	}

	return nil
}

func (s *tcpSocket) connFor(dcid string) (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[dcid]; ok {
		return conn, nil
	}

	addr, err := s.resolver.Resolve(dcid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve address for datacenter %s", dcid)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial datacenter %s at %s", dcid, addr)
	}

	s.conns[dcid] = conn
	return conn, nil
}

func (s *tcpSocket) dropConn(dcid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[dcid]; ok {
		_ = conn.Close()
		delete(s.conns, dcid)
	}
}

func (s *tcpSocket) Close() error {
	s.mu.Lock()
	for dcid, conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, dcid)
	}
	s.mu.Unlock()

	if err := s.listener.Close(); err != nil {
		return errors.Wrap(err, "failed to close publisher socket")
	}
	return nil
}
