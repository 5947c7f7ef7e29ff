package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// RunTimelineDBBenchmarks runs all benchmarks for a timeline database implementation
func RunTimelineDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory(0))
	})

	b.Run("InsertFull", func(b *testing.B) {
		benchmarkInsertFull(b, factory(0))
	})

	b.Run("Query", func(b *testing.B) {
		benchmarkQuery(b, factory(0))
	})

	b.Run("QueryCursor", func(b *testing.B) {
		benchmarkQueryCursor(b, factory(0))
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(0))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for inserts spread over many timelines
func benchmarkInsert(b *testing.B, database db.TimelineDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	var next atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := next.Add(1)
			database.Insert(fmt.Sprintf("user-%d", id%1000), id)
		}
	})
}

// Benchmark for inserts into timelines that are already at their size bound
func benchmarkInsertFull(b *testing.B, database db.TimelineDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	// Prepare data
	for id := timeline.StatusID(1); id <= timeline.DefaultMaxSize; id++ {
		for u := 0; u < 10; u++ {
			database.Insert(fmt.Sprintf("user-%d", u), id)
		}
	}

	var next atomic.Uint64
	next.Store(timeline.DefaultMaxSize)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := next.Add(1)
			database.Insert(fmt.Sprintf("user-%d", id%10), id)
		}
	})
}

// Benchmark for reading the newest page
func benchmarkQuery(b *testing.B, database db.TimelineDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureQuery)

	for id := timeline.StatusID(1); id <= timeline.DefaultMaxSize; id++ {
		database.Insert("reader", id)
	}
	page := timeline.ResolveParams(timeline.QueryParams{})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.Query("reader", page)
		}
	})
}

// Benchmark for reading pages with both cursors set
func benchmarkQueryCursor(b *testing.B, database db.TimelineDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureQuery)

	for id := timeline.StatusID(1); id <= timeline.DefaultMaxSize; id++ {
		database.Insert("reader", id)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			since := timeline.StatusID(r.Intn(timeline.DefaultMaxSize-50) + 1)
			params := timeline.QueryParams{}.Since(since).Max(since + 50)
			database.Query("reader", timeline.ResolveParams(params))
		}
	})
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory(0)

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)

	for u := 0; u < 100; u++ {
		for id := timeline.StatusID(1); id <= 100; id++ {
			database.Insert(fmt.Sprintf("user-%d", u), id)
		}
	}

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if err := database.Load(bytes.NewReader(buf.Bytes())); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// Benchmark for a read heavy mix of pushes, removals and queries
func benchmarkMixedUsage(b *testing.B, database db.TimelineDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureRemove|db.FeatureQuery)

	var next atomic.Uint64
	page := timeline.ResolveParams(timeline.QueryParams{})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("user-%d", r.Intn(100))
			switch op := r.Intn(10); {
			case op < 2:
				database.Insert(key, next.Add(1))
			case op < 3:
				database.Remove(key, timeline.StatusID(r.Int63n(int64(next.Load())+1)))
			default:
				database.Query(key, page)
			}
		}
	})
}
