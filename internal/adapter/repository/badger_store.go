package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"assessment-generator/internal/domain"
)

type subscriberRecord struct {
	Email             string `badgerhold:"key"`
	VerificationToken string `badgerhold:"index"`
	LeadMagnets       map[string]string
	UpdatedAt         time.Time
}

// BadgerStore keeps subscriber records in an embedded Badger database.
// Swaps run inside a Badger transaction; a write conflict counts as a lost
// swap.
type BadgerStore struct {
	store *badgerhold.Store
	now   func() time.Time
}

func NewBadgerStore(store *badgerhold.Store) *BadgerStore {
	return &BadgerStore{store: store, now: time.Now}
}

var errNoSwap = errors.New("swap precondition failed")

func byToken(token string) *badgerhold.Query {
	return badgerhold.Where("VerificationToken").Eq(token).Index("VerificationToken")
}

func (s *BadgerStore) FindByToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	var recs []subscriberRecord
	if err := s.store.Find(&recs, byToken(token)); err != nil {
		return nil, fmt.Errorf("error querying subscriber: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return toSubscriber(recs[0]), nil
}

func (s *BadgerStore) CompareAndSwapGenerated(ctx context.Context, token, magnet string, expected, next *string) (bool, error) {
	err := s.store.Badger().Update(func(tx *badger.Txn) error {
		var recs []subscriberRecord
		if err := s.store.TxFind(tx, &recs, byToken(token)); err != nil {
			return err
		}
		if len(recs) == 0 {
			return errNoSwap
		}
		rec := recs[0]

		cur, present := rec.LeadMagnets[magnet]
		if expected == nil && present || expected != nil && (!present || cur != *expected) {
			return errNoSwap
		}

		if rec.LeadMagnets == nil {
			rec.LeadMagnets = map[string]string{}
		}
		if next == nil {
			delete(rec.LeadMagnets, magnet)
		} else {
			rec.LeadMagnets[magnet] = *next
		}
		rec.UpdatedAt = s.now()
		return s.store.TxUpsert(tx, rec.Email, &rec)
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNoSwap), errors.Is(err, badger.ErrConflict):
		return false, nil
	default:
		return false, fmt.Errorf("error updating subscriber: %w", err)
	}
}

func (s *BadgerStore) UpsertGenerated(ctx context.Context, email, token, magnet string, at time.Time) error {
	err := s.store.Badger().Update(func(tx *badger.Txn) error {
		var rec subscriberRecord
		err := s.store.TxGet(tx, email, &rec)
		switch {
		case errors.Is(err, badgerhold.ErrNotFound):
			rec = subscriberRecord{Email: email}
		case err != nil:
			return err
		}

		// an existing token is kept; a new one must not belong to anyone else
		if rec.VerificationToken == "" && token != "" {
			var owners []subscriberRecord
			if err := s.store.TxFind(tx, &owners, byToken(token)); err != nil {
				return err
			}
			for _, o := range owners {
				if o.Email != email {
					return ErrTokenInUse
				}
			}
			rec.VerificationToken = token
		}
		if rec.LeadMagnets == nil {
			rec.LeadMagnets = map[string]string{}
		}
		rec.LeadMagnets[magnet] = domain.FormatTimestamp(at)
		rec.UpdatedAt = s.now()
		return s.store.TxUpsert(tx, email, &rec)
	})
	if err != nil {
		return fmt.Errorf("error upserting subscriber: %w", err)
	}
	return nil
}

func toSubscriber(rec subscriberRecord) *domain.Subscriber {
	magnets := make(map[string]string, len(rec.LeadMagnets))
	for k, v := range rec.LeadMagnets {
		magnets[k] = v
	}
	return &domain.Subscriber{
		Email:             rec.Email,
		VerificationToken: rec.VerificationToken,
		LeadMagnets:       magnets,
	}
}
