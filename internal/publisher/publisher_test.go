package publisher

import (
	"context"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/grafana/ccbuffer/internal/metadata"
	"github.com/grafana/ccbuffer/internal/transport"
	"github.com/grafana/ccbuffer/internal/txn"
)

type fakeMetadata struct {
	dcs []string
	err error
}

func (f fakeMetadata) Read(context.Context) ([]string, error) { return f.dcs, f.err }

type fakeSocket struct {
	mu      sync.Mutex
	sent    []string // dcid per send
	failFor map[string]bool
	closed  bool
}

func (s *fakeSocket) Send(_ context.Context, dcid string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[dcid] {
		return errors.Errorf("send to %s failed", dcid)
	}
	s.sent = append(s.sent, dcid)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sampleTxn() txn.Txn {
	return txn.Txn{
		LogRecords: []txn.LogRecord{
			{LogOperation: txn.LogOperation{TxID: "tx1", Kind: txn.Commit}},
		},
	}
}

func newStarted(t *testing.T, md metadata.Client, sock *fakeSocket, cfg Config) *Publisher {
	t.Helper()
	p := New(cfg, md, func() (transport.Socket, error) { return sock, nil }, log.NewNopLogger(), prometheus.NewRegistry())
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), p))
	t.Cleanup(func() { _ = services.StopAndAwaitTerminated(context.Background(), p) })
	return p
}

func TestPublisher_BroadcastEmitsToEveryPeerDC(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{dcs: []string{"dc1", "dc2"}}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.Broadcast(context.Background(), []txn.Txn{sampleTxn()})

	require.ElementsMatch(t, []string{"dc1", "dc2"}, sock.sent)
}

func TestPublisher_BroadcastIsNoopOnEmptyTxnList(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{dcs: []string{"dc1"}}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.Broadcast(context.Background(), nil)

	require.Empty(t, sock.sent)
}

func TestPublisher_BroadcastIsNoopOnEmptyDCList(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{dcs: nil}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.Broadcast(context.Background(), []txn.Txn{sampleTxn()})

	require.Empty(t, sock.sent)
}

func TestPublisher_BroadcastFailsOpenOnMetadataReadError(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{err: errors.New("metadata store unreachable")}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.Broadcast(context.Background(), []txn.Txn{sampleTxn()})

	require.Empty(t, sock.sent)
}

func TestPublisher_BroadcastSkipsFailingDCButTriesOthers(t *testing.T) {
	sock := &fakeSocket{failFor: map[string]bool{"dc1": true}}
	p := newStarted(t, fakeMetadata{dcs: []string{"dc1", "dc2"}}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.Broadcast(context.Background(), []txn.Txn{sampleTxn()})

	require.Equal(t, []string{"dc2"}, sock.sent)
}

func TestPublisher_BroadcastTupleSplitsByReplicationFactor(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{dcs: []string{"dc1", "dc2", "dc3", "dc4", "dc5"}}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.BroadcastTuple(context.Background(), TxnTuple{
		Full:  []txn.Txn{sampleTxn()},
		Short: []txn.Txn{sampleTxn()},
	})

	require.Len(t, sock.sent, 5) // every DC gets exactly one send, full or short
}

func TestPublisher_BroadcastTupleAllDCsGetFullWhenFewerThanR(t *testing.T) {
	sock := &fakeSocket{}
	p := newStarted(t, fakeMetadata{dcs: []string{"dc1"}}, sock, Config{Port: 9999, ReplicationFactor: 3})

	p.BroadcastTuple(context.Background(), TxnTuple{
		Full:  []txn.Txn{sampleTxn()},
		Short: []txn.Txn{sampleTxn()},
	})

	require.Equal(t, []string{"dc1"}, sock.sent) // full set absorbs every available DC, short set is empty
}

func TestPublisher_StoppingClosesSocket(t *testing.T) {
	sock := &fakeSocket{}
	cfg := Config{Port: 9999, ReplicationFactor: 3}
	p := New(cfg, fakeMetadata{}, func() (transport.Socket, error) { return sock, nil }, log.NewNopLogger(), prometheus.NewRegistry())

	require.NoError(t, services.StartAndAwaitRunning(context.Background(), p))
	require.NoError(t, services.StopAndAwaitTerminated(context.Background(), p))

	require.True(t, sock.closed)
}

func TestPublisher_SocketBindFailureIsFatal(t *testing.T) {
	cfg := Config{Port: 9999, ReplicationFactor: 3}
	p := New(cfg, fakeMetadata{}, func() (transport.Socket, error) { return nil, errors.New("address already in use") }, log.NewNopLogger(), prometheus.NewRegistry())

	err := services.StartAndAwaitRunning(context.Background(), p)
	require.Error(t, err)
}
