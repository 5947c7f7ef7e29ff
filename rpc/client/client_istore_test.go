package client_test

import (
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/store"
	storetesting "github.com/ValentinKolb/dFeed/lib/store/testing"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/ValentinKolb/dFeed/rpc/client"
	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/serializer"
	"github.com/ValentinKolb/dFeed/rpc/server"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/ValentinKolb/dFeed/rpc/transport/http"
	"github.com/ValentinKolb/dFeed/rpc/transport/tcp"
	"github.com/ValentinKolb/dFeed/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	memShard  = 100
	boltShard = 200
)

// testTransport bundles the server and client side of one transport
type testTransport struct {
	name     string
	server   func() transport.IRPCServerTransport
	client   func() transport.IRPCClientTransport
	endpoint func(t *testing.T) (listen, dial string)
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

var transports = []testTransport{
	{
		name:   "TCP",
		server: tcp.NewTCPServerTransport,
		client: tcp.NewTCPClientTransport,
		endpoint: func(t *testing.T) (string, string) {
			addr := freePort(t)
			return addr, addr
		},
	},
	{
		name:   "Unix",
		server: unix.NewUnixDefaultServerTransport,
		client: unix.NewUnixClientTransport,
		endpoint: func(t *testing.T) (string, string) {
			// socket paths are limited to ~100 bytes, t.TempDir can be longer
			dir, err := os.MkdirTemp("", "dfeed")
			require.NoError(t, err)
			t.Cleanup(func() { _ = os.RemoveAll(dir) })
			path := filepath.Join(dir, "rpc.sock")
			return path, path
		},
	},
	{
		name:   "HTTP",
		server: http.NewHttpServerTransport,
		client: http.NewHttpClientTransport,
		endpoint: func(t *testing.T) (string, string) {
			addr := freePort(t)
			return addr, "http://" + addr
		},
	},
}

// startServer starts a server with one in-memory and one bolt shard and waits until it accepts requests
func startServer(t *testing.T, tt testTransport, s serializer.IRPCSerializer, boltPath string) (dial string, stop func()) {
	t.Helper()
	listen, dial := tt.endpoint(t)

	srv := server.NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: memShard, Type: common.ShardTypeLocalIStore},
			{ShardID: boltShard, Type: common.ShardTypeBoltIStore},
		},
		BoltPath:      boltPath,
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: listen, WorkersPerConn: 4},
	}, tt.server(), s)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("server stopped before accepting requests: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	return dial, func() {
		assert.NoError(t, srv.Close())
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}
}

func clientConfig(dial string) common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{dial},
			RetryCount:             2,
			ConnectionsPerEndpoint: 2,
			TCPConf:                common.TCPConf{TCPNoDelay: true},
		},
	}
}

func newClient(t *testing.T, tt testTransport, s serializer.IRPCSerializer, dial string, shard uint64) store.IStore {
	t.Helper()
	ct := tt.client()
	st, err := client.NewRPCStore(shard, clientConfig(dial), ct, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ct.Close() })
	return st
}

func TestRPCStore(t *testing.T) {
	serializers := map[string]func() serializer.IRPCSerializer{
		"Binary": serializer.NewBinarySerializer,
		"JSON":   serializer.NewJSONSerializer,
	}

	for _, tt := range transports {
		for sName, newSerializer := range serializers {
			storetesting.RunStoreTests(t, tt.name+"_"+sName, func(t *testing.T) store.IStore {
				s := newSerializer()
				dial, stop := startServer(t, tt, s, t.TempDir())
				t.Cleanup(stop)
				return newClient(t, tt, s, dial, memShard)
			})
		}
	}
}

func TestBoltShardSurvivesRestart(t *testing.T) {
	tt := transports[0]
	s := serializer.NewBinarySerializer()
	boltPath := t.TempDir()

	dial, stop := startServer(t, tt, s, boltPath)
	st := newClient(t, tt, s, dial, boltShard)
	for id := timeline.StatusID(1); id <= 5; id++ {
		require.NoError(t, st.Push("alice", id))
	}
	stop()

	dial, stop = startServer(t, tt, s, boltPath)
	defer stop()
	st = newClient(t, tt, s, dial, boltShard)

	page, err := st.Query("alice", timeline.QueryParams{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{5, 4, 3}, page)

	info, err := st.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Timelines)
	assert.Equal(t, db.ImplBolt, info.DbType)
	assert.Contains(t, info.SupportedFeatures, db.FeatureDurable)
}

func TestUnknownShard(t *testing.T) {
	tt := transports[0]
	s := serializer.NewBinarySerializer()
	dial, stop := startServer(t, tt, s, t.TempDir())
	defer stop()

	st := newClient(t, tt, s, dial, 999)
	err := st.Push("alice", 1)
	require.Error(t, err)
	assert.Equal(t, store.RetCInternalError, store.CodeOf(err))
	assert.Contains(t, err.Error(), "shard 999 not found")
}

func TestUnreachableServerIsRetryable(t *testing.T) {
	s := serializer.NewBinarySerializer()
	addr := freePort(t)

	// framed transports dial on connect
	_, err := client.NewRPCStore(memShard, clientConfig(addr), tcp.NewTCPClientTransport(), s)
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))

	// http dials per request
	st, err := client.NewRPCStore(memShard, clientConfig("http://"+addr), http.NewHttpClientTransport(), s)
	require.NoError(t, err)
	err = st.Push("alice", 1)
	require.Error(t, err)
	assert.True(t, store.IsRetryable(err))
	assert.Equal(t, store.RetCUnavailable, store.CodeOf(err))
}

func TestMetricsEndpoint(t *testing.T) {
	tt := transports[2]
	s := serializer.NewJSONSerializer()
	dial, stop := startServer(t, tt, s, t.TempDir())
	defer stop()

	st := newClient(t, tt, s, dial, memShard)
	require.NoError(t, st.Push("alice", 1))
	_, err := st.Query("alice", timeline.QueryParams{})
	require.NoError(t, err)

	resp, err := nethttp.Get(dial + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	for _, name := range []string{
		`dfeed_rpc_requests_total{type="push"}`,
		`dfeed_push_total{store="lstore"}`,
		"dfeed_query_duration_seconds",
	} {
		assert.True(t, strings.Contains(text, name), fmt.Sprintf("missing %s", name))
	}
}
