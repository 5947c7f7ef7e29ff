package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/db"
	dbtesting "github.com/ValentinKolb/dFeed/lib/db/testing"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func tempFactory(tb testing.TB) dbtesting.DBFactory {
	return func(maxSize int) db.TimelineDB {
		return NewBoltDB(DBOptions{
			Path:            filepath.Join(tb.TempDir(), "timelines.db"),
			MaxTimelineSize: maxSize,
			NoSync:          true,
		})
	}
}

func Test(t *testing.T) {
	dbtesting.RunTimelineDBTests(t, "BoltDB", tempFactory(t))
}

func Benchmark(b *testing.B) {
	dbtesting.RunTimelineDBBenchmarks(b, "BoltDB", tempFactory(b))
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(DBOptions{})
	assert.Error(t, err)
}

func TestReopenKeepsTimelines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "timelines.db")

	first, err := Open(DBOptions{Path: path, MaxTimelineSize: 3})
	require.NoError(t, err)
	for id := timeline.StatusID(1); id <= 5; id++ {
		_, _, err := first.Insert("alice", id)
		require.NoError(t, err)
	}
	require.NoError(t, first.Close())

	second, err := Open(DBOptions{Path: path, MaxTimelineSize: 3})
	require.NoError(t, err)
	defer second.Close()

	ids, err := second.RevRange("alice", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{5, 4, 3}, ids)
	assert.True(t, second.SupportsFeature(db.FeatureDurable|db.FeatureQuery))

	info := second.GetInfo()
	assert.Equal(t, db.ImplBolt, info.DbType)
	assert.Equal(t, 1, info.Timelines)
	assert.Positive(t, info.SizeBytes)
}

func TestStoreErrClassification(t *testing.T) {
	assert.ErrorIs(t, storeErr("insert", "alice", bolt.ErrDatabaseNotOpen), db.ErrClosed)
	assert.ErrorIs(t, storeErr("insert", "alice", bolt.ErrDatabaseNotOpen), db.ErrUnavailable)
	assert.ErrorIs(t, storeErr("insert", "alice", errors.New("input/output error")), db.ErrUnavailable)
	assert.ErrorIs(t, storeErr("insert", "", bolt.ErrBucketNameRequired), db.ErrInvalidKey)
	assert.NotErrorIs(t, storeErr("insert", "", bolt.ErrBucketNameRequired), db.ErrUnavailable)
	assert.NoError(t, storeErr("insert", "alice", nil))
}

func TestEmptyKey(t *testing.T) {
	database, err := Open(DBOptions{Path: filepath.Join(t.TempDir(), "timelines.db"), NoSync: true})
	require.NoError(t, err)
	defer database.Close()

	_, _, err = database.Insert("", 1)
	assert.ErrorIs(t, err, db.ErrInvalidKey)
	assert.NotErrorIs(t, err, db.ErrUnavailable)
}
