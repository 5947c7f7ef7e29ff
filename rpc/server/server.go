package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/bolt"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/dstore"
	"github.com/ValentinKolb/dFeed/lib/store/lstore"
	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/serializer"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer serves the shards of one node over a transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]

	mu       sync.Mutex
	nodeHost *dragonboat.NodeHost
	dbs      []db.TimelineDB // local databases, closed with the server
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// requestCounter counts handled requests per message type
func requestCounter(t common.MessageType) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dfeed_rpc_requests_total{type=%q}`, t.String()))
}

// errorCounter counts failed requests per message type
func errorCounter(t common.MessageType) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`dfeed_rpc_errors_total{type=%q}`, t.String()))
}

// handle decodes a request, dispatches it to the shard and encodes the response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	shard, ok := s.shards.Load(shardId)
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		requestCounter(msg.MsgType).Inc()
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	if respMsg.Err != "" {
		errorCounter(msg.MsgType).Inc()
	}

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// newMapleFactory returns a factory creating in-memory engines with the configured bound
func (s *RPCServer) newMapleFactory() store.DBFactory {
	return func() db.TimelineDB {
		return maple.NewMapleDB(&maple.DBOptions{
			NumShards:       runtime.NumCPU(),
			MaxTimelineSize: s.config.TimelineSize,
		})
	}
}

// track registers a local database so Close releases it
func (s *RPCServer) track(d db.TimelineDB) db.TimelineDB {
	s.mu.Lock()
	s.dbs = append(s.dbs, d)
	s.mu.Unlock()
	return d
}

func (s *RPCServer) init() error {
	if s.config.LogLevel != "" {
		if err := common.InitLoggers(s.config.LogLevel); err != nil {
			return err
		}
	}

	// Only create the NodeHost if we have remote shards
	if s.config.HasRemoteShard() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.mu.Lock()
		s.nodeHost = nodeHost
		s.mu.Unlock()
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	/*
		Note: A single RPC Server can serve any number of shards. Each shard is
		backed by its own store: an in-memory one (lstore), a bolt file (bstore)
		or a raft replicated state machine (dstore).
	*/

	for _, shardConfig := range s.config.Shards {
		var st store.IStore

		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			factory := s.newMapleFactory()
			st = lstore.NewLocalStore(func() db.TimelineDB { return s.track(factory()) })

		case common.ShardTypeBoltIStore:
			boltDB, err := bolt.Open(bolt.DBOptions{
				Path:            s.config.BoltFile(shardConfig.ShardID),
				MaxTimelineSize: s.config.TimelineSize,
			})
			if err != nil {
				return fmt.Errorf("failed to open bolt db for shard %d: %w", shardConfig.ShardID, err)
			}
			st = lstore.NewLocalStore(func() db.TimelineDB { return s.track(boltDB) })

		case common.ShardTypeRemoteIStore:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create remote store")
			}
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.CreateStateMachineFactory(s.newMapleFactory()),
				s.config.ToDragonboatConfig(shardConfig.ShardID),
			); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			st = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("dFeed setup completed successfully")

	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return errors.Join(err, s.Close())
	}
	return s.transport.Listen(s.config)
}

// Ready is closed once the transport accepts requests
func (s *RPCServer) Ready() <-chan struct{} {
	return s.transport.Ready()
}

// Close stops the transport and releases all shards.
func (s *RPCServer) Close() error {
	errs := []error{s.transport.Close()}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.dbs {
		errs = append(errs, d.Close())
	}
	s.dbs = nil

	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return errors.Join(errs...)
}
