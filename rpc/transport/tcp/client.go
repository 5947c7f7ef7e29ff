package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/ValentinKolb/dFeed/rpc/transport/base"
)

// clientConnector dials timeline servers over TCP
type clientConnector struct{}

func (c *clientConnector) GetName() string {
	return "tcp"
}

// Connect dials with the client timeout so an unreachable replica does not block Connect.
// Keep-alive is left to UpgradeConnection, a negative value disables the dialer default.
func (c *clientConnector) Connect(endpoint string, config common.ClientConfig) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   time.Duration(config.TimeoutSecond) * time.Second,
		KeepAlive: -1,
	}
	return dialer.Dial("tcp", endpoint)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeTCP(conn, config.Transport.TCPConf, config.Transport.SocketConf)
}

// NewTCPClientTransport returns a client transport that multiplexes requests over TCP connections
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
