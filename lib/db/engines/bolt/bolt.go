package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/db/util"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var log = logger.GetLogger("db/bolt")

const (
	bTimelines = "timelines" // root bucket, holds one nested bucket per key
	defaultTO  = 2 * time.Second
)

// --------------------------------------------------------------------------
// Core Bolt database structure
// --------------------------------------------------------------------------

// boltImpl stores every timeline in its own bbolt bucket.
// Ids are big-endian encoded keys, so the natural bucket order is the timeline order.
type boltImpl struct {
	path    string
	maxSize int
	db      *bolt.DB

	inserts   atomic.Uint64
	evictions atomic.Uint64
}

// DBOptions configures the bolt engine
type DBOptions struct {
	Path            string        // Path of the database file (required)
	MaxTimelineSize int           // Size bound of every timeline (0 = timeline.DefaultMaxSize)
	Timeout         time.Duration // Time to wait for the file lock (0 = 2s)
	NoSync          bool          // Skip fsync after each commit, faster but not crash safe
}

// Open opens (or creates) a bolt backed timeline database at opts.Path.
func Open(opts DBOptions) (db.TimelineDB, error) {
	if opts.Path == "" {
		return nil, errors.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTO
	}
	if opts.MaxTimelineSize <= 0 {
		opts.MaxTimelineSize = timeline.DefaultMaxSize
	}

	bdb, err := bolt.Open(opts.Path, 0o600, &bolt.Options{Timeout: opts.Timeout, NoSync: opts.NoSync})
	if err != nil {
		return nil, err
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bTimelines))
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	log.Infof("opened bolt timeline database at %s", opts.Path)

	return &boltImpl{
		path:    opts.Path,
		maxSize: opts.MaxTimelineSize,
		db:      bdb,
	}, nil
}

// NewBoltDB is like Open but panics on error. It matches the db factory signature
// used by the stores.
func NewBoltDB(opts DBOptions) db.TimelineDB {
	tdb, err := Open(opts)
	if err != nil {
		panic(err)
	}
	return tdb
}

// --------------------------------------------------------------------------
// Encoding helpers
// --------------------------------------------------------------------------

func idKey(id timeline.StatusID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func decodeID(b []byte) timeline.StatusID {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// readIDs returns all ids of bucket b in ascending order
func readIDs(b *bolt.Bucket) []timeline.StatusID {
	ids := []timeline.StatusID{}
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		ids = append(ids, decodeID(k))
	}
	return ids
}

// countIDs counts the keys of bucket b
func countIDs(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// evictOldest deletes the lowest ids of b until at most maxSize remain
func evictOldest(b *bolt.Bucket, maxSize int) (int, error) {
	excess := countIDs(b) - maxSize
	evicted := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil && evicted < excess; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// timelineBucket returns the bucket of key or nil
func timelineBucket(tx *bolt.Tx, key string) *bolt.Bucket {
	return tx.Bucket([]byte(bTimelines)).Bucket([]byte(key))
}

// storeErr classifies a bbolt failure. Key errors are caller mistakes, everything else
// (closed file, I/O, lock timeout) means the storage is unavailable.
func storeErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, bolt.ErrBucketNameRequired), errors.Is(err, bolt.ErrKeyTooLarge),
		errors.Is(err, bolt.ErrKeyRequired), errors.Is(err, bolt.ErrIncompatibleValue):
		return fmt.Errorf("%w: %s of %q: %w", db.ErrInvalidKey, op, key, err)
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return fmt.Errorf("%w: %s of %q", db.ErrClosed, op, key)
	default:
		log.Errorf("%s of %q failed: %v", op, key, err)
		return fmt.Errorf("%w: %s of %q: %w", db.ErrUnavailable, op, key, err)
	}
}

// view loads the timeline of key inside a read transaction and passes it to fn.
// A missing timeline is passed as an empty one.
func (b *boltImpl) view(op, key string, fn func(tl *timeline.RankedTimeline)) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := timelineBucket(tx, key)
		if bucket == nil {
			fn(timeline.New(b.maxSize))
			return nil
		}
		fn(timeline.FromIDs(b.maxSize, readIDs(bucket)))
		return nil
	})
	return storeErr(op, key, err)
}

// --------------------------------------------------------------------------
// Core TimelineDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert adds id to the timeline of key and evicts the oldest ids in the same transaction.
func (b *boltImpl) Insert(key string, id timeline.StatusID) (bool, int, error) {
	var inserted bool
	var evicted int
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket([]byte(bTimelines)).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		k := idKey(id)
		if bucket.Get(k) != nil {
			return nil
		}
		if err := bucket.Put(k, []byte{}); err != nil {
			return err
		}
		inserted = true
		// an id older than a full window is evicted right away
		evicted, err = evictOldest(bucket, b.maxSize)
		return err
	})
	if err != nil {
		return false, 0, storeErr("insert", key, err)
	}
	b.evictions.Add(uint64(evicted))
	if inserted {
		b.inserts.Add(1)
	}
	return inserted, evicted, nil
}

// Remove deletes id from the timeline of key; the bucket is kept even when empty.
func (b *boltImpl) Remove(key string, id timeline.StatusID) (bool, error) {
	var removed bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := timelineBucket(tx, key)
		if bucket == nil {
			return nil
		}
		k := idKey(id)
		if bucket.Get(k) == nil {
			return nil
		}
		removed = true
		return bucket.Delete(k)
	})
	if err != nil {
		return false, storeErr("remove", key, err)
	}
	return removed, nil
}

func (b *boltImpl) Trim(key string, maxSize int) (int, error) {
	if maxSize <= 0 || maxSize > b.maxSize {
		maxSize = b.maxSize
	}
	var evicted int
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := timelineBucket(tx, key)
		if bucket == nil {
			return nil
		}
		var err error
		evicted, err = evictOldest(bucket, maxSize)
		return err
	})
	if err != nil {
		return 0, storeErr("trim", key, err)
	}
	b.evictions.Add(uint64(evicted))
	return evicted, nil
}

// --------------------------------------------------------------------------
// Core TimelineDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Rank(key string, id timeline.StatusID) (rank int, found bool, err error) {
	err = b.view("rank", key, func(tl *timeline.RankedTimeline) {
		rank, found = tl.Rank(id)
	})
	if err != nil {
		return 0, false, err
	}
	return rank, found, nil
}

func (b *boltImpl) RevRange(key string, start, stop int) ([]timeline.StatusID, error) {
	var ids []timeline.StatusID
	if err := b.view("range", key, func(tl *timeline.RankedTimeline) {
		ids = tl.RevRange(start, stop)
	}); err != nil {
		return nil, err
	}
	return ids, nil
}

// RangeByRank walks the bucket backwards from maxID, so only the requested ids are read.
func (b *boltImpl) RangeByRank(key string, minID, maxID timeline.StatusID) ([]timeline.StatusID, error) {
	ids := []timeline.StatusID{}
	if minID > maxID {
		return ids, nil
	}
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := timelineBucket(tx, key)
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		k, _ := c.Seek(idKey(maxID))
		if k == nil || decodeID(k) > maxID {
			k, _ = c.Prev()
		}
		for ; k != nil; k, _ = c.Prev() {
			id := decodeID(k)
			if id < minID {
				break
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("range", key, err)
	}
	return ids, nil
}

func (b *boltImpl) Len(key string) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		if bucket := timelineBucket(tx, key); bucket != nil {
			n = countIDs(bucket)
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("len", key, err)
	}
	return n, nil
}

// Query paginates the timeline of key inside a single read transaction.
func (b *boltImpl) Query(key string, page timeline.Page) (timeline.Result, error) {
	var res timeline.Result
	if err := b.view("query", key, func(tl *timeline.RankedTimeline) {
		res = timeline.Paginate(tl, page)
	}); err != nil {
		return timeline.Result{}, err
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes all timelines in the shared snapshot format from one read transaction.
func (b *boltImpl) Save(w io.Writer) error {
	var entries []db.SnapshotEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bTimelines)).ForEachBucket(func(k []byte) error {
			entries = append(entries, db.SnapshotEntry{
				Key: string(k),
				IDs: readIDs(timelineBucket(tx, string(k))),
			})
			return nil
		})
	})
	if err != nil {
		return err
	}
	return db.WriteSnapshot(w, entries)
}

// Load replaces all timelines with the snapshot content in one write transaction.
func (b *boltImpl) Load(r io.Reader) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bTimelines)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		root, err := tx.CreateBucket([]byte(bTimelines))
		if err != nil {
			return err
		}
		return db.ReadSnapshot(r, func(entry db.SnapshotEntry) error {
			bucket, err := root.CreateBucketIfNotExists([]byte(entry.Key))
			if err != nil {
				return err
			}
			for _, id := range timeline.FromIDs(b.maxSize, entry.IDs).IDs() {
				if err := bucket.Put(idKey(id), []byte{}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// --------------------------------------------------------------------------
// TimelineDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

func (b *boltImpl) GetInfo() db.DatabaseInfo {
	histogram := util.NewSizeHistogram(util.TimelineLengthBoundaries...)
	timelines := 0
	var txStats bolt.TxStats

	err := b.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(bTimelines))
		return root.ForEachBucket(func(k []byte) error {
			timelines++
			histogram.AddSample(countIDs(root.Bucket(k)))
			return nil
		})
	})
	if err != nil {
		log.Errorf("collecting info failed: %v", err)
	}

	sizeBytes := 0
	if fi, err := os.Stat(b.path); err == nil {
		sizeBytes = int(fi.Size())
	}
	stats := b.db.Stats()
	txStats = stats.TxStats

	meta := &struct {
		Path               string `json:"path"`
		FreePages          int    `json:"free_pages"`
		OpenTxN            int    `json:"open_tx"`
		PageCount          int64  `json:"page_count"`
		MedianTimelineSize int    `json:"median_timeline_size"`
		P99TimelineSize    int    `json:"p99_timeline_size"`
		Inserts            uint64 `json:"inserts"`
		Evictions          uint64 `json:"evictions"`
	}{
		Path:               b.path,
		FreePages:          stats.FreePageN,
		OpenTxN:            stats.OpenTxN,
		PageCount:          txStats.GetPageCount(),
		MedianTimelineSize: histogram.MedianEstimate(),
		P99TimelineSize:    histogram.GetPercentileEstimate(99),
		Inserts:            b.inserts.Load(),
		Evictions:          b.evictions.Load(),
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Timelines:         timelines,
		MaxTimelineSize:   b.maxSize,
		DbType:            db.ImplBolt,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

var supportedFeatures = []db.Feature{
	db.FeatureInsert, db.FeatureRemove, db.FeatureTrim,
	db.FeatureRank, db.FeatureRange, db.FeatureQuery,
	db.FeatureSave, db.FeatureLoad, db.FeatureDurable,
}

func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	var supported db.Feature
	for _, f := range supportedFeatures {
		supported |= f
	}
	return supported&feature == feature
}

func (b *boltImpl) Close() error {
	return b.db.Close()
}
