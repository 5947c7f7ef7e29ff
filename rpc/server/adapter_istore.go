package server

import (
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

// code converts err into the wire representation of its store.RetCode
func code(err error) uint64 {
	return uint64(store.CodeOf(err))
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTPush:
		err := s.Push(req.User, req.ID)
		return common.NewResponse(req.MsgType, err, code(err))
	case common.MsgTPushMany:
		err := s.PushMany(req.Users, req.ID)
		return common.NewResponse(req.MsgType, err, code(err))
	case common.MsgTRemove:
		err := s.Remove(req.User, req.ID)
		return common.NewResponse(req.MsgType, err, code(err))
	case common.MsgTTrim:
		err := s.Trim(req.User)
		return common.NewResponse(req.MsgType, err, code(err))
	case common.MsgTQuery:
		ids, err := s.Query(req.User, req.QueryParams())
		return common.NewQueryResponse(ids, err, code(err))
	case common.MsgTLen:
		n, err := s.Len(req.User)
		return common.NewLenResponse(n, err, code(err))
	case common.MsgTDBInfo:
		info, err := s.GetDBInfo()
		return common.NewDBInfoResponse(info, err, code(err))
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
