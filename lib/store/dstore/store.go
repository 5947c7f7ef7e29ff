package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/store/dstore/internal"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
	metrics *store.Metrics
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
		metrics: store.NewMetrics("dstore"),
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// toStoreError maps dragonboat errors to store errors.
// Errors that mean "the shard can not be reached right now" become RetCUnavailable.
func toStoreError(err error) error {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	switch {
	case errors.Is(err, dragonboat.ErrTimeout),
		errors.Is(err, dragonboat.ErrShardNotReady),
		errors.Is(err, dragonboat.ErrShardNotFound),
		errors.Is(err, dragonboat.ErrShardClosed),
		errors.Is(err, dragonboat.ErrClosed),
		errors.Is(err, dragonboat.ErrAborted),
		errors.Is(err, dragonboat.ErrSystemBusy),
		errors.Is(err, context.DeadlineExceeded):
		return store.NewError(store.RetCUnavailable, err.Error())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// write serializes a Command and sends it via SyncPropose.
// It returns the number of timeline entries the command changed and
// a *store.Error if an error occurs, or nil on success.
func (s *storeImpl) write(cmd internal.Command) (int, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			s.metrics.Errors.Inc()
			return 0, toStoreError(err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			s.metrics.Errors.Inc()
			return 0, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return changedOf(res), nil
	}
	s.metrics.Errors.Inc()
	return 0, store.NewError(store.RetCUnavailable, "system busy")
}

// read is a generic helper function queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and an error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			r.metrics.Errors.Inc()
			return zero, toStoreError(err)
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	r.metrics.Errors.Inc()
	return zero, store.NewError(store.RetCUnavailable, "system busy")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Push(user string, id timeline.StatusID) error {
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	inserted, err := s.write(internal.Command{
		Type:  internal.CommandTPush,
		ID:    id,
		Users: []string{user},
	})
	s.metrics.Push.Add(inserted)
	return err
}

// PushMany proposes a single log entry for all users, so the fan-out of one status
// is applied atomically on every replica.
func (s *storeImpl) PushMany(users []string, id timeline.StatusID) error {
	if len(users) == 0 {
		return nil
	}
	for _, user := range users {
		if err := store.ValidateUser(user); err != nil {
			return err
		}
	}
	inserted, err := s.write(internal.Command{
		Type:  internal.CommandTPushMany,
		ID:    id,
		Users: users,
	})
	s.metrics.Push.Add(inserted)
	return err
}

func (s *storeImpl) Remove(user string, id timeline.StatusID) error {
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	removed, err := s.write(internal.Command{
		Type:  internal.CommandTRemove,
		ID:    id,
		Users: []string{user},
	})
	s.metrics.Remove.Add(removed)
	return err
}

func (s *storeImpl) Trim(user string) error {
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	_, err := s.write(internal.Command{
		Type:  internal.CommandTTrim,
		Users: []string{user},
	})
	if err == nil {
		s.metrics.Trim.Inc()
	}
	return err
}

func (s *storeImpl) Query(user string, params timeline.QueryParams) ([]timeline.StatusID, error) {
	if err := store.ValidateUser(user); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := read[timeline.Result](s, internal.Query{
		Type: internal.QueryTQuery,
		User: user,
		Page: timeline.ResolveParams(params),
	}, false)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveQuery(start, res.Stale)
	if res.Stale {
		log.Debugf("stale cursor for %q (since=%d/%v max=%d/%v)",
			user, params.SinceID, params.HasSince, params.MaxID, params.HasMax)
	}
	return res.IDs, nil
}

func (s *storeImpl) Len(user string) (int, error) {
	if err := store.ValidateUser(user); err != nil {
		return 0, err
	}
	return read[int](s, internal.Query{
		Type: internal.QueryTLen,
		User: user,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
