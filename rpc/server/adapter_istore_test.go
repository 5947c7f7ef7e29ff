package server

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/lstore"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/ValentinKolb/dFeed/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore() store.IStore {
	return lstore.NewLocalStore(func() db.TimelineDB {
		return maple.NewMapleDB(&maple.DBOptions{NumShards: 2, MaxTimelineSize: 3})
	})
}

func TestAdapterOperations(t *testing.T) {
	adapter := NewIStoreServerAdapter()
	s := newLocalStore()

	for id := uint64(1); id <= 5; id++ {
		resp := adapter.Handle(common.NewPushRequest("alice", id), s)
		require.True(t, resp.Ok, resp.Err)
	}

	resp := adapter.Handle(common.NewPushManyRequest([]string{"alice", "bob"}, 6), s)
	require.True(t, resp.Ok, resp.Err)

	resp = adapter.Handle(common.NewQueryRequest("alice", timeline.QueryParams{}), s)
	require.True(t, resp.Ok, resp.Err)
	assert.Equal(t, []uint64{6, 5, 4}, resp.IDs)

	resp = adapter.Handle(common.NewRemoveRequest("alice", 5), s)
	require.True(t, resp.Ok, resp.Err)

	resp = adapter.Handle(common.NewLenRequest("alice"), s)
	require.True(t, resp.Ok, resp.Err)
	assert.Equal(t, int64(2), resp.N)

	resp = adapter.Handle(common.NewTrimRequest("bob"), s)
	require.True(t, resp.Ok, resp.Err)

	resp = adapter.Handle(common.NewDBInfoRequest(), s)
	require.True(t, resp.Ok, resp.Err)
	var info db.DatabaseInfo
	require.NoError(t, json.Unmarshal(resp.Meta, &info))
	assert.Equal(t, db.ImplMaple, info.DbType)
	assert.Equal(t, 2, info.Timelines)
}

func TestAdapterKeepsReturnCode(t *testing.T) {
	adapter := NewIStoreServerAdapter()

	resp := adapter.Handle(common.NewPushRequest("", 1), newLocalStore())
	assert.False(t, resp.Ok)
	assert.NotEmpty(t, resp.Err)
	assert.Equal(t, uint64(store.RetCInvalidOperation), resp.Code)
}

func TestAdapterRejectsUnknownType(t *testing.T) {
	adapter := NewIStoreServerAdapter()

	resp := adapter.Handle(&common.Message{MsgType: common.MsgTSuccess}, newLocalStore())
	assert.Equal(t, common.MsgTError, resp.MsgType)

	resp = adapter.Handle(common.NewLenRequest("alice"), nil)
	assert.Equal(t, common.MsgTError, resp.MsgType)
}
