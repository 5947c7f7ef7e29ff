package lstore

import (
	"errors"
	"time"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	db      db.TimelineDB
	metrics *store.Metrics
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// The db created by factory decides whether the timelines are kept in memory (maple)
// or on disk (bolt).
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:      factory(),
		metrics: store.NewMetrics("lstore"),
	}
}

// require checks that the underlying db supports the features of an operation
func (s *storeImpl) require(op string, feature db.Feature) error {
	if !s.db.SupportsFeature(feature) {
		s.metrics.Errors.Inc()
		return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
	}
	return nil
}

// toStoreError maps db errors to store errors.
// A failing backing store becomes RetCUnavailable so callers can retry.
func (s *storeImpl) toStoreError(op string, err error) error {
	s.metrics.Errors.Inc()
	switch {
	case errors.Is(err, db.ErrUnavailable):
		log.Warningf("%s failed, backing store unavailable: %v", op, err)
		return store.NewError(store.RetCUnavailable, err.Error())
	case errors.Is(err, db.ErrInvalidKey):
		return store.NewError(store.RetCInvalidOperation, err.Error())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// insert pushes id into the timeline of user and records the metrics
func (s *storeImpl) insert(user string, id timeline.StatusID) error {
	inserted, evicted, err := s.db.Insert(user, id)
	if err != nil {
		return s.toStoreError("Push", err)
	}
	if inserted {
		s.metrics.Push.Inc()
	}
	s.metrics.Evicted.Add(evicted)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Push(user string, id timeline.StatusID) error {
	if err := s.require("Push", db.FeatureInsert); err != nil {
		return err
	}
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	return s.insert(user, id)
}

// PushMany stops at the first failing timeline. Timelines pushed before the failure
// keep the id; retrying is safe because pushes are idempotent.
func (s *storeImpl) PushMany(users []string, id timeline.StatusID) error {
	if err := s.require("PushMany", db.FeatureInsert); err != nil {
		return err
	}
	for _, user := range users {
		if err := store.ValidateUser(user); err != nil {
			return err
		}
	}
	for _, user := range users {
		if err := s.insert(user, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *storeImpl) Remove(user string, id timeline.StatusID) error {
	if err := s.require("Remove", db.FeatureRemove); err != nil {
		return err
	}
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	removed, err := s.db.Remove(user, id)
	if err != nil {
		return s.toStoreError("Remove", err)
	}
	if removed {
		s.metrics.Remove.Inc()
	}
	return nil
}

func (s *storeImpl) Trim(user string) error {
	if err := s.require("Trim", db.FeatureTrim); err != nil {
		return err
	}
	if err := store.ValidateUser(user); err != nil {
		return err
	}
	evicted, err := s.db.Trim(user, 0)
	if err != nil {
		return s.toStoreError("Trim", err)
	}
	s.metrics.Trim.Inc()
	s.metrics.Evicted.Add(evicted)
	return nil
}

func (s *storeImpl) Query(user string, params timeline.QueryParams) ([]timeline.StatusID, error) {
	if err := s.require("Query", db.FeatureQuery); err != nil {
		return nil, err
	}
	if err := store.ValidateUser(user); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := s.db.Query(user, timeline.ResolveParams(params))
	if err != nil {
		return nil, s.toStoreError("Query", err)
	}
	s.metrics.ObserveQuery(start, res.Stale)
	if res.Stale {
		log.Debugf("stale cursor for %q (since=%d/%v max=%d/%v)",
			user, params.SinceID, params.HasSince, params.MaxID, params.HasMax)
	}
	return res.IDs, nil
}

func (s *storeImpl) Len(user string) (int, error) {
	if err := s.require("Len", db.FeatureRange); err != nil {
		return 0, err
	}
	if err := store.ValidateUser(user); err != nil {
		return 0, err
	}
	n, err := s.db.Len(user)
	if err != nil {
		return 0, s.toStoreError("Len", err)
	}
	return n, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
