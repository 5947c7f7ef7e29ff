package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryParamsRoundTrip(t *testing.T) {
	p := timeline.QueryParams{SinceID: 10, HasSince: true, MaxID: 90, HasMax: true, Limit: 15, Offset: 2}
	msg := NewQueryRequest("alice", p)

	assert.Equal(t, MsgTQuery, msg.MsgType)
	assert.Equal(t, "alice", msg.User)
	assert.Equal(t, p, msg.QueryParams())
}

func TestResponses(t *testing.T) {
	ok := NewResponse(MsgTPush, nil, 3)
	assert.True(t, ok.Ok)
	assert.Empty(t, ok.Err)
	assert.Zero(t, ok.Code)

	failed := NewLenResponse(7, errors.New("boom"), 4)
	assert.False(t, failed.Ok)
	assert.Equal(t, "boom", failed.Err)
	assert.Equal(t, uint64(4), failed.Code)
	assert.Zero(t, failed.N)

	q := NewQueryResponse([]uint64{3, 2, 1}, nil, 0)
	assert.Equal(t, []uint64{3, 2, 1}, q.IDs)

	info := NewDBInfoResponse(map[string]int{"timelines": 2}, nil, 0)
	require.True(t, info.Ok)
	assert.JSONEq(t, `{"timelines":2}`, string(info.Meta))
}

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTSuccess; mt <= MsgTDBInfo; mt++ {
		data, err := json.Marshal(mt)
		require.NoError(t, err)

		var back MessageType
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, mt, back)
	}

	var mt MessageType
	assert.Error(t, json.Unmarshal([]byte(`"set"`), &mt))
}

func TestParseShardType(t *testing.T) {
	for _, s := range []string{"lstore", "bstore", " dstore "} {
		_, err := ParseShardType(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseShardType("lockmgr(lstore)")
	assert.Error(t, err)
}

func TestBoltFile(t *testing.T) {
	c := ServerConfig{BoltPath: "/var/lib/dfeed/"}
	assert.Equal(t, "/var/lib/dfeed/shard-7.db", c.BoltFile(7))

	c.BoltPath = ""
	assert.Equal(t, "./shard-7.db", c.BoltFile(7))
}

func TestParseLogLevel(t *testing.T) {
	_, err := ParseLogLevel("WARN")
	assert.NoError(t, err)
	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}
