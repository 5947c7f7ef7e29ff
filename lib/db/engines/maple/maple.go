package maple

import (
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dFeed/lib/db/util"
	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory timeline database
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	maxSize   int               // Size bound of every timeline
	shards    []*internal.Shard // Array of shards

	// counters reported by GetInfo
	inserts   atomic.Uint64
	evictions atomic.Uint64

	closed atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards       int // Number of shards (0 = auto)
	MaxTimelineSize int // Size bound of every timeline (0 = timeline.DefaultMaxSize)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:       runtime.NumCPU(), // Auto-determine based on CPU count
		MaxTimelineSize: timeline.DefaultMaxSize,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.TimelineDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}
	maxSize := opts.MaxTimelineSize
	if maxSize <= 0 {
		maxSize = timeline.DefaultMaxSize
	}

	return &mapleImpl{
		numShards: numShards,
		seed:      util.GenerateSeed(),
		maxSize:   maxSize,
		shards:    newShards(numShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// --------------------------------------------------------------------------
// Entry Helper Functions
// --------------------------------------------------------------------------

// shardFor returns the shard responsible for key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(key, maple.seed, maple.shards)
}

// loadOrCreate returns the entry for key and creates it if it does not exist yet.
// Creation is atomic, concurrent callers always get the same entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) loadOrCreate(key string) *internal.Entry {
	entry, _ := maple.shardFor(key).Data.LoadOrCompute(key, func() *internal.Entry {
		return internal.NewEntry(maple.maxSize)
	})
	return entry
}

// load returns the entry for key without creating it.
// A closed database reports db.ErrClosed instead of a missing entry.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) load(key string) (*internal.Entry, bool, error) {
	if maple.closed.Load() {
		return nil, false, db.ErrClosed
	}
	entry, ok := maple.shardFor(key).Data.Load(key)
	return entry, ok, nil
}

// --------------------------------------------------------------------------
// Core TimelineDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert adds id to the timeline of key and evicts the oldest ids beyond the size bound.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Insert(key string, id timeline.StatusID) (bool, int, error) {
	if maple.closed.Load() {
		return false, 0, db.ErrClosed
	}
	var inserted bool
	var evicted []timeline.StatusID
	maple.loadOrCreate(key).With(func(tl *timeline.RankedTimeline) {
		inserted, evicted = tl.Insert(id)
	})
	maple.evictions.Add(uint64(len(evicted)))
	if inserted {
		maple.inserts.Add(1)
	}
	return inserted, len(evicted), nil
}

// Remove deletes id from the timeline of key.
// The (possibly empty) timeline itself is kept.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Remove(key string, id timeline.StatusID) (bool, error) {
	entry, ok, err := maple.load(key)
	if !ok {
		return false, err
	}
	var removed bool
	entry.With(func(tl *timeline.RankedTimeline) {
		removed = tl.Remove(id)
	})
	return removed, nil
}

// Trim evicts the oldest ids of the timeline of key until at most maxSize remain.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Trim(key string, maxSize int) (int, error) {
	entry, ok, err := maple.load(key)
	if !ok {
		return 0, err
	}
	if maxSize <= 0 || maxSize > maple.maxSize {
		maxSize = maple.maxSize
	}
	var evicted int
	entry.With(func(tl *timeline.RankedTimeline) {
		evicted = len(tl.Trim(maxSize))
	})
	maple.evictions.Add(uint64(evicted))
	return evicted, nil
}

// --------------------------------------------------------------------------
// Core TimelineDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Rank returns the ascending rank of id in the timeline of key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Rank(key string, id timeline.StatusID) (rank int, found bool, err error) {
	entry, ok, err := maple.load(key)
	if !ok {
		return 0, false, err
	}
	entry.With(func(tl *timeline.RankedTimeline) {
		rank, found = tl.Rank(id)
	})
	return rank, found, nil
}

// RevRange returns the ids at the descending positions [start, stop].
// The returned slice is a copy and safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) RevRange(key string, start, stop int) ([]timeline.StatusID, error) {
	entry, ok, err := maple.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []timeline.StatusID{}, nil
	}
	var ids []timeline.StatusID
	entry.With(func(tl *timeline.RankedTimeline) {
		ids = tl.RevRange(start, stop)
	})
	return ids, nil
}

// RangeByRank returns the ids with a score in [minID, maxID], most recent first.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) RangeByRank(key string, minID, maxID timeline.StatusID) ([]timeline.StatusID, error) {
	entry, ok, err := maple.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []timeline.StatusID{}, nil
	}
	var ids []timeline.StatusID
	entry.With(func(tl *timeline.RankedTimeline) {
		ids = tl.RangeByRank(minID, maxID)
	})
	return ids, nil
}

// Len returns the number of ids in the timeline of key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Len(key string) (int, error) {
	entry, ok, err := maple.load(key)
	if !ok {
		return 0, err
	}
	var n int
	entry.With(func(tl *timeline.RankedTimeline) {
		n = tl.Len()
	})
	return n, nil
}

// Query paginates the timeline of key. Rank lookups and the range fetch run under
// the same lock, so the result is consistent with a single point in time.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Query(key string, page timeline.Page) (timeline.Result, error) {
	entry, ok, err := maple.load(key)
	if err != nil {
		return timeline.Result{}, err
	}
	if !ok {
		return timeline.Paginate(timeline.New(maple.maxSize), page), nil
	}
	var res timeline.Result
	entry.With(func(tl *timeline.RankedTimeline) {
		res = timeline.Paginate(tl, page)
	})
	return res, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// Each timeline is copied under its own lock, so concurrent writes are allowed
// (the snapshot is fuzzy across timelines but consistent per timeline).
//
// Thread-safety: This function allows concurrent operations with all other functions except Load.
func (maple *mapleImpl) Save(w io.Writer) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	var entries []db.SnapshotEntry

	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry *internal.Entry) bool {
			var ids []timeline.StatusID
			entry.With(func(tl *timeline.RankedTimeline) {
				ids = tl.IDs()
			})
			entries = append(entries, db.SnapshotEntry{Key: key, IDs: ids})
			return true
		})
	}

	// stable output for identical states
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	return db.WriteSnapshot(w, entries)
}

// Load restores a database from the reader. All existing timelines are replaced.
// Timelines larger than the configured size bound are trimmed while loading.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	shards := newShards(maple.numShards)

	err := db.ReadSnapshot(r, func(entry db.SnapshotEntry) error {
		shard := internal.GetShard(entry.Key, maple.seed, shards)
		shard.Data.Store(entry.Key, &internal.Entry{
			Timeline: timeline.FromIDs(maple.maxSize, entry.IDs),
		})
		return nil
	})
	if err != nil {
		return err
	}

	maple.shards = shards
	return nil
}

// --------------------------------------------------------------------------
// TimelineDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// Metadata is the engine specific part of db.DatabaseInfo
type Metadata struct {
	ShardCount         int                    `json:"shard_count"`
	ShardDistribution  util.DistributionStats `json:"shard_distribution"`
	MedianTimelineSize int                    `json:"median_timeline_size"`
	P99TimelineSize    int                    `json:"p99_timeline_size"`
	Inserts            uint64                 `json:"inserts"`
	Evictions          uint64                 `json:"evictions"`
	Info               string                 `json:"info"`
}

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// sample the timeline sizes of all shards concurrently
	histogram := util.NewSizeHistogram(util.TimelineLengthBoundaries...)
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	mu := sync.Mutex{}
	timelines := 0
	totalIDs := 0
	shardSizes := make([]float64, len(maple.shards))

	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			ids := 0
			s.Data.Range(func(_ string, entry *internal.Entry) bool {
				entry.With(func(tl *timeline.RankedTimeline) {
					ids += tl.Len()
					histogram.AddSample(tl.Len())
				})
				count++
				return true
			})

			mu.Lock()
			defer mu.Unlock()
			timelines += count
			totalIDs += ids
			shardSizes[i] = float64(count)
		}(shardIndex, shard)
	}

	wg.Wait()

	// 8 bytes per id plus map and slice overhead per timeline
	entryOverhead := 96
	sizeBytes := totalIDs*8 + timelines*entryOverhead

	meta := &Metadata{
		ShardCount:         len(maple.shards),
		ShardDistribution:  util.NewDistributionStats(shardSizes),
		MedianTimelineSize: histogram.MedianEstimate(),
		P99TimelineSize:    histogram.GetPercentileEstimate(99),
		Inserts:            maple.inserts.Load(),
		Evictions:          maple.evictions.Load(),
		Info:               "SizeBytes and the timeline size percentiles are estimates.",
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Timelines:         timelines,
		MaxTimelineSize:   maple.maxSize,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

var supportedFeatures = []db.Feature{
	db.FeatureInsert, db.FeatureRemove, db.FeatureTrim,
	db.FeatureRank, db.FeatureRange, db.FeatureQuery,
	db.FeatureSave, db.FeatureLoad,
}

// SupportsFeature checks if this implementation supports a specific TimelineDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureInsert |
		db.FeatureRemove |
		db.FeatureTrim |
		db.FeatureRank |
		db.FeatureRange |
		db.FeatureQuery |
		db.FeatureSave |
		db.FeatureLoad
	return supported&feature == feature
}

// Close releases all timelines. Every later data operation fails with db.ErrClosed.
func (maple *mapleImpl) Close() error {
	if maple.closed.Swap(true) {
		return nil
	}
	maple.shards = newShards(maple.numShards)
	return nil
}
