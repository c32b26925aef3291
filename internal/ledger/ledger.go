// Package ledger owns the credit currency: an append-only transaction log
// plus the cached per-user balance projection.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/store"
)

const lockStripes = 64

// Service serializes all ledger writes for a single user through a
// striped mutex, so deductions are check-then-act under a lock and the
// balance can never be spent past zero by concurrent requests.
type Service struct {
	store store.Store
	log   *logrus.Logger
	locks [lockStripes]sync.Mutex
}

func New(st store.Store, log *logrus.Logger) *Service {
	return &Service{store: st, log: log}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

func marshalMeta(meta map[string]any) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

// Add appends a ledger row and applies the delta to the cached balance.
// The balance update is a transactional increment in the store; if it
// fails after the row was written the error is returned so an operator
// can reconcile, the inconsistency is never hidden.
func (s *Service) Add(ctx context.Context, userID string, delta int, reason string, meta map[string]any) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.addLocked(ctx, userID, delta, reason, meta)
}

func (s *Service) addLocked(ctx context.Context, userID string, delta int, reason string, meta map[string]any) error {
	tx := &model.CreditTransaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		Meta:      marshalMeta(meta),
		CreatedAt: time.Now(),
	}

	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	if err := s.store.ApplyCreditDelta(ctx, userID, delta); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"delta":   delta,
			"tx_id":   tx.ID,
		}).WithError(err).Error("ledger entry written but balance update failed; manual reconciliation required")
		return fmt.Errorf("apply credit delta: %w", err)
	}

	return nil
}

// Deduct re-reads the balance under the user's lock and refuses the debit
// if it is insufficient. Returns false with no mutation when refused.
func (s *Service) Deduct(ctx context.Context, userID string, amount int, reason string, meta map[string]any) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.Credits < amount {
		return false, nil
	}

	if err := s.addLocked(ctx, userID, -amount, reason, meta); err != nil {
		return false, err
	}
	return true, nil
}

// AdminAdjust grants or claws back credits as an authoritative correction.
// It bypasses balance sufficiency in both directions and tags the entry
// for audit.
func (s *Service) AdminAdjust(ctx context.Context, userID string, delta int, reason string) error {
	return s.Add(ctx, userID, delta, reason, map[string]any{"admin": true})
}

// Balance returns the cached balance.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// History lists the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	return s.store.ListTransactions(ctx, userID, limit)
}

// VerifyIntegrity recomputes the ledger sum and compares it to the cached
// balance. A mismatch is a fatal integrity violation and is both logged
// and returned.
func (s *Service) VerifyIntegrity(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := s.store.SumTransactions(ctx, userID)
	if err != nil {
		return err
	}

	if sum != user.Credits {
		s.log.WithFields(logrus.Fields{
			"user_id":    userID,
			"ledger_sum": sum,
			"balance":    user.Credits,
		}).Error("credit ledger integrity violation")
		return fmt.Errorf("ledger integrity violation for user %s: ledger sum %d != cached balance %d", userID, sum, user.Credits)
	}
	return nil
}
