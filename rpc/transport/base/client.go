package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	// ErrNoConnection is returned by Send when no connection to any endpoint is alive.
	ErrNoConnection = errors.New("no active connections available")
	// ErrTimeout is returned by Send when no response arrived within the client timeout.
	ErrTimeout = errors.New("request timed out")

	errConnClosed = errors.New("connection is closed")
)

const initialBackoff = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect dials a single connection to endpoint, giving up after the client timeout
	Connect(endpoint string, config common.ClientConfig) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// response is delivered by the reader goroutine to the waiting Send call
type response struct {
	data []byte
	err  error
}

// clientConnection multiplexes concurrent requests over one net.Conn.
// Responses are matched to requests by request id.
type clientConnection struct {
	endpoint string
	parent   *clientTransport

	mu   sync.Mutex // guards conn and serializes frame writes
	conn net.Conn

	pending *xsync.MapOf[uint64, chan response]
	stopCh  chan struct{}
}

func newClientConnection(parent *clientTransport, endpoint string) *clientConnection {
	return &clientConnection{
		endpoint: endpoint,
		parent:   parent,
		pending:  xsync.NewMapOf[uint64, chan response](),
		stopCh:   make(chan struct{}),
	}
}

// dial replaces the current net.Conn with a fresh one
func (c *clientConnection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint, c.parent.config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}

// current returns the live net.Conn or nil
func (c *clientConnection) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return c.parent.stopping.Load()
	}
}

// roundTrip writes one request frame and waits for the matching response
func (c *clientConnection) roundTrip(shardID, requestID uint64, req []byte, timeout time.Duration) ([]byte, error) {
	respCh := make(chan response, 1)
	c.pending.Store(requestID, respCh)
	defer c.pending.Delete(requestID)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, errConnClosed
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(c.conn, shardID, requestID, req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-respCh:
		return r.data, r.err
	case <-timeoutCh:
		return nil, ErrTimeout
	}
}

// failPending fails every request waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, ch chan response) bool {
		select {
		case ch <- response{err: err}:
		default:
		}
		return true
	})
}

// readResponses delivers responses to their waiting requests until the connection is stopped.
// A broken connection fails all pending requests and is redialed once.
func (c *clientConnection) readResponses() {
	for {
		if c.stopped() {
			return
		}

		conn := c.current()
		if conn == nil {
			return
		}

		// responses are awaited with the request timeout in roundTrip, no read deadline here
		shardID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if c.stopped() {
				c.failPending(errConnClosed)
				return
			}

			Logger.Warningf("Connection to %s failed: %v", c.endpoint, err)
			c.failPending(fmt.Errorf("error reading response: %w", err))

			if err := c.dial(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		if ch, ok := c.pending.Load(requestID); ok {
			ch <- response{data: data}
		} else {
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
		}
	}
}

// close stops the reader and closes the net.Conn
func (c *clientConnection) close() {
	close(c.stopCh)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// -----------------------------------------------------------
// Transport
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	connectionsMu sync.RWMutex
	connections   []*clientConnection

	nextConn      atomic.Uint64 // round robin cursor
	nextRequestID atomic.Uint64
	stopping      atomic.Bool
}

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.closeConnections()
	t.config = config
	t.stopping.Store(false)

	perEndpoint := max(config.Transport.ConnectionsPerEndpoint, 1)
	total := len(config.Transport.Endpoints) * perEndpoint

	connections := make([]*clientConnection, 0, total)
	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < perEndpoint; i++ {
			c := newClientConnection(t, endpoint)
			if err := c.dial(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, perEndpoint, err)
				continue
			}
			connections = append(connections, c)
			go c.readResponses()
		}
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Infof("Connected %d/%d connections to %d endpoints using %s transport",
		len(connections), total, len(config.Transport.Endpoints), t.connector.GetName())
	return nil
}

// Send retries failed attempts on the next connection with exponential backoff
func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	requestID := t.nextRequestID.Add(1)
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	attempts := max(t.config.Transport.RetryCount, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		c := t.next()
		if c == nil {
			return nil, ErrNoConnection
		}

		data, err := c.roundTrip(shardId, requestID, req, timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, attempts, err)

		if i < attempts-1 {
			time.Sleep(backoff(i))
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", attempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// backoff returns the delay after the given failed attempt, doubled per attempt with +-10% jitter
func backoff(attempt int) time.Duration {
	d := initialBackoff << attempt
	return time.Duration(float64(d) * (0.9 + 0.2*rand.Float64()))
}

// next selects the next connection via round robin
func (t *clientTransport) next() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConn.Add(1)%uint64(len(t.connections))]
	}
}

// closeConnections closes and forgets all connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		c.close()
	}
}
