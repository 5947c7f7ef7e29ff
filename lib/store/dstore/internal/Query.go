package internal

import "github.com/ValentinKolb/dFeed/lib/timeline"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTQuery     QueryType = iota // Paginate a timeline.
	QueryTLen                        // Number of ids in a timeline.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTQuery:
		return "Query"
	case QueryTLen:
		return "Len"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type QueryType     // The type of Query to perform.
	User string        // The timeline to read (empty for QueryTGetDBInfo).
	Page timeline.Page // Resolved page, only used by QueryTQuery.
}

// Results are timeline.Result (QueryTQuery), int (QueryTLen) and db.DatabaseInfo (QueryTGetDBInfo).
