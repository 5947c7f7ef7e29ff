package unix

import (
	"net"
	"time"

	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/ValentinKolb/dFeed/rpc/transport/base"
)

// clientConnector dials a local timeline server over a Unix socket
type clientConnector struct{}

func (c *clientConnector) GetName() string {
	return "unix"
}

// Connect dials the socket path, bounded by the client timeout
func (c *clientConnector) Connect(endpoint string, config common.ClientConfig) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, time.Duration(config.TimeoutSecond)*time.Second)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeUnix(conn, config.Transport.SocketConf)
}

// NewUnixClientTransport returns a client transport that multiplexes requests over Unix socket connections
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
