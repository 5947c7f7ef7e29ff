package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/ValentinKolb/dFeed/rpc/serializer"
	"github.com/ValentinKolb/dFeed/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	if err := transport.Connect(config); err != nil {
		return nil, store.NewError(store.RetCUnavailable, err.Error())
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Push(user string, id timeline.StatusID) error {
	_, err := i.invoke(common.NewPushRequest(user, id))
	return err
}

func (i *rpcStore) PushMany(users []string, id timeline.StatusID) error {
	if len(users) == 0 {
		return nil
	}
	_, err := i.invoke(common.NewPushManyRequest(users, id))
	return err
}

func (i *rpcStore) Remove(user string, id timeline.StatusID) error {
	_, err := i.invoke(common.NewRemoveRequest(user, id))
	return err
}

func (i *rpcStore) Trim(user string) error {
	_, err := i.invoke(common.NewTrimRequest(user))
	return err
}

func (i *rpcStore) Query(user string, params timeline.QueryParams) ([]timeline.StatusID, error) {
	resp, err := i.invoke(common.NewQueryRequest(user, params))
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (i *rpcStore) Len(user string) (int, error) {
	resp, err := i.invoke(common.NewLenRequest(user))
	if err != nil {
		return 0, err
	}
	return int(resp.N), nil
}

// GetDBInfo returns the info of the remote database. Metadata is decoded generically
// (map[string]any) since the concrete type depends on the server side engine.
func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewDBInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to decode db info: %s", err))
	}
	return info, nil
}
