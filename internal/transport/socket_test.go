package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticResolver map[string]string

func (r staticResolver) Resolve(dcid string) (string, error) {
	addr, ok := r[dcid]
	if !ok {
		return "", io.ErrUnexpectedEOF
	}
	return addr, nil
}

func TestSocketSendDeliversFramedPayload(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer peer.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := peer.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var header [4]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(header[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		received <- body
	}()

	sock, err := Bind(0, staticResolver{"dc1": peer.Addr().String()})
	require.NoError(t, err)
	defer sock.Close()

	err = sock.Send(context.Background(), "dc1", []byte("hello"))
	require.NoError(t, err)

	select {
	case body := <-received:
		require.Equal(t, "hello", string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for framed payload")
	}
}

func TestSocketSendFailsOnUnresolvableDC(t *testing.T) {
	sock, err := Bind(0, staticResolver{})
	require.NoError(t, err)
	defer sock.Close()

	err = sock.Send(context.Background(), "unknown-dc", []byte("x"))
	require.Error(t, err)
}

func TestSocketCloseSucceedsWithNoConns(t *testing.T) {
	sock, err := Bind(0, staticResolver{})
	require.NoError(t, err)
	require.NoError(t, sock.Close())
}
