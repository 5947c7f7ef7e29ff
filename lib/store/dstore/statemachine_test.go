package dstore

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/dstore/internal"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/lni/dragonboat/v4"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateMachine(maxSize int) sm.IConcurrentStateMachine {
	factory := CreateStateMachineFactory(func() db.TimelineDB {
		return maple.NewMapleDB(&maple.DBOptions{MaxTimelineSize: maxSize})
	})
	return factory(1, 1)
}

func apply(t *testing.T, fsm sm.IConcurrentStateMachine, cmds ...internal.Command) []sm.Entry {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i, cmd := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: cmd.Serialize()}
	}
	res, err := fsm.Update(entries)
	require.NoError(t, err)
	return res
}

func query(t *testing.T, fsm sm.IConcurrentStateMachine, user string, params timeline.QueryParams) timeline.Result {
	t.Helper()
	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTQuery, User: user, Page: timeline.ResolveParams(params)})
	require.NoError(t, err)
	require.IsType(t, timeline.Result{}, res)
	return res.(timeline.Result)
}

func TestUpdateAndLookup(t *testing.T) {
	fsm := newStateMachine(3)
	defer fsm.Close()

	entries := apply(t, fsm,
		internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTPushMany, ID: 2, Users: []string{"alice", "bob"}},
		internal.Command{Type: internal.CommandTPush, ID: 3, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTPush, ID: 4, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTRemove, ID: 3, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTTrim, Users: []string{"bob"}},
	)
	for _, e := range entries {
		assert.Equal(t, uint64(store.RetCSuccess), e.Result.Value, string(e.Result.Data))
	}

	assert.Equal(t, []timeline.StatusID{4, 2}, query(t, fsm, "alice", timeline.QueryParams{}).IDs)
	assert.Equal(t, []timeline.StatusID{2}, query(t, fsm, "bob", timeline.QueryParams{}).IDs)

	stale := query(t, fsm, "alice", timeline.QueryParams{}.Since(1))
	assert.True(t, stale.Stale)
	assert.Empty(t, stale.IDs)

	n, err := fsm.Lookup(internal.Query{Type: internal.QueryTLen, User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	info, err := fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	require.NoError(t, err)
	assert.Equal(t, 2, info.(db.DatabaseInfo).Timelines)
}

func TestUpdateRejectsInvalidEntries(t *testing.T) {
	fsm := newStateMachine(0)
	defer fsm.Close()

	entries := []sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{1, 2, 3}},
		{Index: 3, Cmd: (&internal.Command{Type: internal.CommandType(42), Users: []string{"a"}}).Serialize()},
		{Index: 4, Cmd: (&internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"a", "b"}}).Serialize()},
		{Index: 5, Cmd: (&internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"a"}}).Serialize()},
	}
	res, err := fsm.Update(entries)
	require.NoError(t, err)

	assert.Equal(t, uint64(store.RetCInvalidOperation), res[0].Result.Value)
	assert.Equal(t, uint64(store.RetCInternalError), res[1].Result.Value)
	assert.Equal(t, uint64(store.RetCInvalidOperation), res[2].Result.Value)
	assert.Equal(t, uint64(store.RetCInvalidOperation), res[3].Result.Value)
	assert.Equal(t, uint64(store.RetCSuccess), res[4].Result.Value)

	_, err = fsm.Lookup("not a query")
	assert.Equal(t, store.RetCInternalError, store.CodeOf(err))
	_, err = fsm.Lookup(internal.Query{Type: internal.QueryType(42)})
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
}

func TestSnapshotRoundTrip(t *testing.T) {
	fsm := newStateMachine(0)
	defer fsm.Close()
	apply(t, fsm,
		internal.Command{Type: internal.CommandTPushMany, ID: 7, Users: []string{"alice", "bob"}},
		internal.Command{Type: internal.CommandTPush, ID: 9, Users: []string{"alice"}},
	)

	var buf bytes.Buffer
	ctx, err := fsm.PrepareSnapshot()
	require.NoError(t, err)
	require.NoError(t, fsm.SaveSnapshot(ctx, &buf, nil, nil))

	restored := newStateMachine(0)
	defer restored.Close()
	require.NoError(t, restored.RecoverFromSnapshot(&buf, nil, nil))

	assert.Equal(t, []timeline.StatusID{9, 7}, query(t, restored, "alice", timeline.QueryParams{}).IDs)
	assert.Equal(t, []timeline.StatusID{7}, query(t, restored, "bob", timeline.QueryParams{}).IDs)
}

func TestToStoreError(t *testing.T) {
	assert.True(t, store.IsRetryable(toStoreError(dragonboat.ErrTimeout)))
	assert.False(t, store.IsRetryable(toStoreError(assert.AnError)))

	passthrough := store.NewError(store.RetCInvalidOperation, "bad")
	assert.Same(t, passthrough, toStoreError(passthrough))
}


func TestUpdateReportsChangedEntries(t *testing.T) {
	fsm := newStateMachine(2)
	defer fsm.Close()

	entries := apply(t, fsm,
		internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTPushMany, ID: 1, Users: []string{"alice", "bob", "carol"}},
		internal.Command{Type: internal.CommandTRemove, ID: 1, Users: []string{"bob"}},
		internal.Command{Type: internal.CommandTRemove, ID: 1, Users: []string{"bob"}},
		internal.Command{Type: internal.CommandTTrim, Users: []string{"alice"}},
	)

	want := []int{1, 0, 2, 1, 0, 0}
	for i, e := range entries {
		require.Equal(t, uint64(store.RetCSuccess), e.Result.Value, string(e.Result.Data))
		assert.Equal(t, want[i], changedOf(e.Result), "entry %d", i)
	}
}

func TestUpdateRejectsEmptyUser(t *testing.T) {
	fsm := newStateMachine(0)
	defer fsm.Close()

	entries := apply(t, fsm,
		internal.Command{Type: internal.CommandTRemove, ID: 1, Users: []string{""}},
		internal.Command{Type: internal.CommandTTrim, Users: []string{""}},
		internal.Command{Type: internal.CommandTPushMany, ID: 1, Users: []string{"alice", ""}},
	)
	for _, e := range entries {
		assert.Equal(t, uint64(store.RetCInvalidOperation), e.Result.Value)
	}

	n, err := fsm.Lookup(internal.Query{Type: internal.QueryTLen, User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a rejected fan-out must not touch any timeline")
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	fsm := newStateMachine(0)
	apply(t, fsm, internal.Command{Type: internal.CommandTPush, ID: 1, Users: []string{"alice"}})
	require.NoError(t, fsm.Close())

	entries := apply(t, fsm,
		internal.Command{Type: internal.CommandTPush, ID: 2, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTRemove, ID: 1, Users: []string{"alice"}},
		internal.Command{Type: internal.CommandTTrim, Users: []string{"alice"}},
	)
	for _, e := range entries {
		assert.Equal(t, uint64(store.RetCUnavailable), e.Result.Value, string(e.Result.Data))
	}

	_, err := fsm.Lookup(internal.Query{Type: internal.QueryTQuery, User: "alice", Page: timeline.ResolveParams(timeline.QueryParams{})})
	assert.True(t, store.IsRetryable(err))
	_, err = fsm.Lookup(internal.Query{Type: internal.QueryTLen, User: "alice"})
	assert.True(t, store.IsRetryable(err))
}
