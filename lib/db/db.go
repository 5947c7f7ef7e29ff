package db

import (
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

var (
	// ErrUnavailable marks failures of the backing storage (closed database, I/O errors).
	// Operations failing with it may be retried, they never mean "empty timeline".
	ErrUnavailable = errors.New("backing store unavailable")
	// ErrClosed is returned by every data operation on a closed database.
	ErrClosed = fmt.Errorf("%w: database is closed", ErrUnavailable)
	// ErrInvalidKey is returned for keys the engine can not store.
	ErrInvalidKey = errors.New("invalid timeline key")
)

const (
	ImplMaple Implementation = "maple"
	ImplBolt  Implementation = "bolt"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert Feature = 1 << iota // Support for Insert operations
	FeatureRemove                     // Support for Remove operations
	FeatureTrim                       // Support for Trim operations
	FeatureRank                       // Support for Rank lookups
	FeatureRange                      // Support for RevRange and RangeByRank
	FeatureQuery                      // Support for atomic paginated Query operations
	FeatureSave                       // Support for Save operations
	FeatureLoad                       // Support for Load operations
	FeatureDurable                    // Data survives a process restart without Save/Load
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureRemove:
		return "Remove"
	case FeatureTrim:
		return "Trim"
	case FeatureRank:
		return "Rank"
	case FeatureRange:
		return "Range"
	case FeatureQuery:
		return "Query"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureDurable:
		return "Durable"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Timelines         int            `json:"timelines"`
	MaxTimelineSize   int            `json:"max_timeline_size"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// TimelineDB defines an interface for ordered-set databases holding one ranked timeline per key.
// Every member of a timeline is a status id which is also its ordering score.
// Timelines are created lazily on the first insert; reading an unknown key behaves like reading an empty timeline.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
//
// Data operations fail with an error wrapping ErrUnavailable if the backing storage can not
// be read or written. An error is never reported as an empty timeline.
type TimelineDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert adds id to the timeline of key and evicts the oldest ids if the timeline exceeds
	// the configured maximum size. Insert and eviction must be applied atomically.
	// Inserting an id that is already present is a no-op and returns false.
	// evicted is the number of ids dropped by the size bound (possibly id itself).
	Insert(key string, id timeline.StatusID) (inserted bool, evicted int, err error)

	// Remove deletes id from the timeline of key. Returns false if the id was not present.
	Remove(key string, id timeline.StatusID) (removed bool, err error)

	// Trim evicts the oldest ids of the timeline of key until at most maxSize remain.
	// A maxSize <= 0 uses the configured maximum size. Returns the number of evicted ids.
	Trim(key string, maxSize int) (evicted int, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Rank returns the 0-based ascending rank of id in the timeline of key.
	// The found flag is false if the id (or the timeline) does not exist.
	Rank(key string, id timeline.StatusID) (rank int, found bool, err error)

	// RevRange returns the ids at the descending positions [start, stop] (inclusive, clamped).
	// Position 0 is the most recent id, a negative stop selects everything up to the oldest id.
	RevRange(key string, start, stop int) (ids []timeline.StatusID, err error)

	// RangeByRank returns the ids with a score in [minID, maxID], most recent first.
	RangeByRank(key string, minID, maxID timeline.StatusID) (ids []timeline.StatusID, err error)

	// Len returns the number of ids in the timeline of key.
	Len(key string) (n int, err error)

	// Query runs timeline.Paginate against the timeline of key while no write can interleave.
	Query(key string, page timeline.Page) (res timeline.Result, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	// Existing data is replaced.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
