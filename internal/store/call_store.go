package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/liveclass/internal/domain"
)

// CallStore persists the call ledger. Transition is the single write
// path for state changes, so the terminal-state guard runs inside the
// row lock and late signals can never resurrect a finished call.
type CallStore interface {
	Create(ctx context.Context, rec *domain.CallRecord) error
	Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error)
	Transition(ctx context.Context, id domain.CallID, to domain.CallStatus, mutate func(*domain.CallRecord)) (*domain.CallRecord, bool, error)
	OpenCallsFor(ctx context.Context, id domain.IdentityID) ([]*domain.CallRecord, error)
	HistoryFor(ctx context.Context, id domain.IdentityID, limit int) ([]*domain.CallRecord, error)
}

type callStore struct {
	db *gorm.DB
}

func NewCallStore(db *gorm.DB) CallStore {
	return &callStore{db: db}
}

func (s *callStore) Create(ctx context.Context, rec *domain.CallRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *callStore) Get(ctx context.Context, id domain.CallID) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := retryRead(func() error {
		rec = domain.CallRecord{}
		return s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Transition loads the record under a row lock, applies the state
// machine guard, runs mutate and saves. The bool result is false when
// the record was already terminal or the transition is not legal — a
// no-op, not an error.
func (s *callStore) Transition(ctx context.Context, id domain.CallID, to domain.CallStatus, mutate func(*domain.CallRecord)) (*domain.CallRecord, bool, error) {
	var rec domain.CallRecord
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		if !rec.Status.CanTransition(to) {
			return nil
		}
		rec.Status = to
		if mutate != nil {
			mutate(&rec)
		}
		applied = true
		return tx.Save(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, domain.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, applied, nil
}

// OpenCallsFor returns non-terminal calls this identity is a party to;
// used when a disconnect has to be treated as end/missed.
func (s *callStore) OpenCallsFor(ctx context.Context, id domain.IdentityID) ([]*domain.CallRecord, error) {
	var recs []*domain.CallRecord
	err := retryRead(func() error {
		recs = nil
		return s.db.WithContext(ctx).
			Where("(caller_id = ? OR receiver_id = ?) AND status IN ?",
				id, id, []domain.CallStatus{domain.CallInitiated, domain.CallActive}).
			Find(&recs).Error
	})
	return recs, err
}

func (s *callStore) HistoryFor(ctx context.Context, id domain.IdentityID, limit int) ([]*domain.CallRecord, error) {
	var recs []*domain.CallRecord
	err := retryRead(func() error {
		recs = nil
		q := s.db.WithContext(ctx).
			Where("caller_id = ? OR receiver_id = ?", id, id).
			Order("started_at DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&recs).Error
	})
	return recs, err
}
