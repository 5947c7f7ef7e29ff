package lstore

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/bolt"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple"
	"github.com/ValentinKolb/dFeed/lib/store"
	storetesting "github.com/ValentinKolb/dFeed/lib/store/testing"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	storetesting.RunStoreTests(t, "Maple", func(t *testing.T) store.IStore {
		return NewLocalStore(func() db.TimelineDB { return maple.NewMapleDB(nil) })
	})

	storetesting.RunStoreTests(t, "Bolt", func(t *testing.T) store.IStore {
		path := filepath.Join(t.TempDir(), "timelines.db")
		return NewLocalStore(func() db.TimelineDB {
			return bolt.NewBoltDB(bolt.DBOptions{Path: path, NoSync: true})
		})
	})
}

func TestLocalStoreUnavailable(t *testing.T) {
	storetesting.RunUnavailableTests(t, "Maple", func(t *testing.T) (store.IStore, func()) {
		tdb := maple.NewMapleDB(nil)
		return NewLocalStore(func() db.TimelineDB { return tdb }), func() { _ = tdb.Close() }
	})

	storetesting.RunUnavailableTests(t, "Bolt", func(t *testing.T) (store.IStore, func()) {
		tdb := bolt.NewBoltDB(bolt.DBOptions{Path: filepath.Join(t.TempDir(), "timelines.db"), NoSync: true})
		return NewLocalStore(func() db.TimelineDB { return tdb }), func() { require.NoError(t, tdb.Close()) }
	})
}

func TestStaleQueryIsCounted(t *testing.T) {
	s := NewLocalStore(func() db.TimelineDB { return maple.NewMapleDB(nil) })
	require.NoError(t, s.Push("alice", 1))

	before := store.NewMetrics("lstore").QueryStale.Get()
	page, err := s.Query("alice", timeline.QueryParams{}.Since(999))
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, before+1, store.NewMetrics("lstore").QueryStale.Get())

	var sb strings.Builder
	metrics.WritePrometheus(&sb, false)
	assert.Contains(t, sb.String(), `dfeed_query_stale_total{store="lstore"}`)
}

// readOnlyDB hides the write features of an engine
type readOnlyDB struct {
	db.TimelineDB
}

func (readOnlyDB) SupportsFeature(f db.Feature) bool {
	return f&(db.FeatureInsert|db.FeatureRemove|db.FeatureTrim) == 0
}

func TestUnsupportedOperation(t *testing.T) {
	s := NewLocalStore(func() db.TimelineDB { return readOnlyDB{maple.NewMapleDB(nil)} })

	err := s.Push("alice", 1)
	require.Error(t, err)
	assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(err))

	_, err = s.Query("alice", timeline.QueryParams{})
	assert.NoError(t, err)
}
