package dstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/dstore/internal"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// TimelineStateMachine is a state machine implementation for Dragonboat RAFT
type TimelineStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.TimelineDB // the actual dataStorage
	metrics   *store.Metrics
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &TimelineStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
			metrics:   store.NewMetrics("dstore"),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding TimelineDB method.
func (fsm *TimelineStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTQuery:
		if !fsm.database.SupportsFeature(db.FeatureQuery) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Query operation is not supported")
		}
		res, err := fsm.database.Query(q.User, q.Page)
		if err != nil {
			return nil, dbError(err)
		}
		return res, nil
	case internal.QueryTLen:
		n, err := fsm.database.Len(q.User)
		if err != nil {
			return nil, dbError(err)
		}
		return n, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// result builds the sm.Result of a rejected command, Value carries the store.RetCode
// and Data the error message
func result(code store.RetCode, format string, args ...any) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(fmt.Sprintf(format, args...))}
}

// success builds the sm.Result of an applied command, Data carries the number of
// changed timeline entries (big endian uint64)
func success(changed int) sm.Result {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(changed))
	return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
}

// changedOf reads the count written by success
func changedOf(res sm.Result) int {
	if len(res.Data) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(res.Data))
}

// dbError maps a db error to a store error, a failing backing store is retryable
func dbError(err error) *store.Error {
	switch {
	case errors.Is(err, db.ErrUnavailable):
		return store.NewError(store.RetCUnavailable, err.Error())
	case errors.Is(err, db.ErrInvalidKey):
		return store.NewError(store.RetCInvalidOperation, err.Error())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// failed builds the sm.Result of a command the db could not apply
func failed(err error) sm.Result {
	storeErr := dbError(err)
	return result(storeErr.Code, "%s", storeErr.Msg)
}

// Update handles write commands on the TimelineDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *TimelineStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	cmd := internal.Command{}
	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = result(store.RetCInvalidOperation, "empty command ignored")
			continue
		}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = result(store.RetCInternalError, "failed to deserialize command: %v", err)
			continue
		}

		// Check if the db supports the operation
		feat, err := cmd.Type.ToDBFeature()
		if err != nil {
			entries[idx].Result = result(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
			continue
		}
		if !fsm.database.SupportsFeature(feat) {
			entries[idx].Result = result(store.RetCUnsupportedOperation, "%s operation is not supported", cmd.Type)
			continue
		}
		if cmd.Type != internal.CommandTPushMany && len(cmd.Users) != 1 {
			entries[idx].Result = result(store.RetCInvalidOperation, "%s needs exactly one user, got %d", cmd.Type, len(cmd.Users))
			continue
		}

		if slices.Contains(cmd.Users, "") {
			entries[idx].Result = result(store.RetCInvalidOperation, "%s: user must not be empty", cmd.Type)
			continue
		}

		switch cmd.Type {
		case internal.CommandTPush, internal.CommandTPushMany:
			inserted, err := fsm.insert(cmd.Users, cmd.ID)
			if err != nil {
				log.Errorf("push of %d failed on replica %d: %v", cmd.ID, fsm.replicaID, err)
				entries[idx].Result = failed(err)
				continue
			}
			entries[idx].Result = success(inserted)
		case internal.CommandTRemove:
			removed, err := fsm.database.Remove(cmd.Users[0], cmd.ID)
			if err != nil {
				log.Errorf("remove of %d failed on replica %d: %v", cmd.ID, fsm.replicaID, err)
				entries[idx].Result = failed(err)
				continue
			}
			if removed {
				entries[idx].Result = success(1)
			} else {
				entries[idx].Result = success(0)
			}
		case internal.CommandTTrim:
			evicted, err := fsm.database.Trim(cmd.Users[0], 0)
			if err != nil {
				log.Errorf("trim failed on replica %d: %v", fsm.replicaID, err)
				entries[idx].Result = failed(err)
				continue
			}
			fsm.metrics.Evicted.Add(evicted)
			entries[idx].Result = success(evicted)
		default:
			entries[idx].Result = result(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
		}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms:", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// insert pushes id to all users and returns the number of timelines that changed.
// It stops at the first failing timeline, a retry re-applies the idempotent pushes.
func (fsm *TimelineStateMachine) insert(users []string, id timeline.StatusID) (int, error) {
	n := 0
	for _, user := range users {
		inserted, evicted, err := fsm.database.Insert(user, id)
		if err != nil {
			return n, err
		}
		if inserted {
			n++
		}
		fsm.metrics.Evicted.Add(evicted)
	}
	return n, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *TimelineStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *TimelineStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used TimelineDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot replaces the db content with the snapshot.
func (fsm *TimelineStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used TimelineDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *TimelineStateMachine) Close() error {
	return fsm.database.Close()
}
