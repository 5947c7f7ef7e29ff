package client

import (
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/serializer"
	"github.com/ValentinKolb/dFeed/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the shard and returns the response.
// All failures are returned as *store.Error:
//   - the transport could not deliver the request: RetCUnavailable
//   - the response could not be decoded or has the wrong type: RetCInternalError
//   - the operation failed on the server: the code the server reported
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to serialize request: %s", err))
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		Logger.Debugf("%s request to shard %d failed: %v", req.MsgType, a.shardId, err)
		return nil, store.NewError(store.RetCUnavailable, err.Error())
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to deserialize response: %s", err))
	}

	// request level error (unknown shard, malformed request, ...)
	if resp.MsgType == common.MsgTError {
		return nil, store.NewError(store.RetCInternalError, resp.Err)
	}

	if resp.Err != "" {
		code := store.RetCode(resp.Code)
		if code == store.RetCSuccess {
			code = store.RetCInternalError
		}
		return nil, &store.Error{Code: code, Msg: resp.Err}
	}

	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
