package tcp

import (
	"fmt"
	"net"
	"testing"

	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConnectorDial(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			TCPConf: common.TCPConf{TCPNoDelay: true, TCPKeepAliveSec: 30},
		},
	}

	connector := &clientConnector{}
	conn, err := connector.Connect(l.Addr().String(), cfg)
	require.NoError(t, err)
	defer conn.Close()
	assert.NoError(t, connector.UpgradeConnection(conn, cfg))

	// nothing listens on a closed port
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := closed.Addr().(*net.TCPAddr)
	require.NoError(t, closed.Close())

	_, err = connector.Connect(fmt.Sprintf("127.0.0.1:%d", addr.Port), cfg)
	assert.Error(t, err)
}
