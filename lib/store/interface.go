package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.TimelineDB

// IStore is the interface for interacting with a timeline store: a map from user to
// that user's bounded, ranked home timeline.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
// Errors are of type *Error.
type IStore interface {
	// Push inserts id into the timeline of user. The oldest ids are evicted if the
	// timeline exceeds its size bound. Pushing an id that is already present is a no-op.
	Push(user string, id timeline.StatusID) (err error)
	// PushMany inserts id into the timelines of all users (fan-out of one status).
	PushMany(users []string, id timeline.StatusID) (err error)
	// Remove deletes id from the timeline of user. Removing an absent id is a no-op.
	Remove(user string, id timeline.StatusID) (err error)
	// Trim evicts the oldest ids of the timeline of user beyond the size bound.
	Trim(user string) (err error)
	// Query returns one page of the timeline of user, most recent first.
	// A cursor that is not part of the timeline (stale) yields an empty page and no error.
	Query(user string, params timeline.QueryParams) (ids []timeline.StatusID, err error)
	// Len returns the number of ids in the timeline of user.
	Len(user string) (n int, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("TimelineStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// ValidateUser rejects user names no timeline can be stored under.
func ValidateUser(user string) error {
	if user == "" {
		return NewError(RetCInvalidOperation, "user must not be empty")
	}
	return nil
}

// IsRetryable reports whether err signals a temporarily unreachable backing store.
// Callers may retry such operations, all other errors are permanent.
func IsRetryable(err error) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code == RetCUnavailable
	}
	return false
}

// CodeOf returns the return code carried by err.
// Errors that are not of type *Error map to RetCInternalError, nil to RetCSuccess.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCUnavailable                         // 4: Backing store is unreachable, the operation may be retried.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}
