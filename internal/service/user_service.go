package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/store"
)

// SignupCredits is granted to every newly provisioned user.
const SignupCredits = 100

// UserService provisions user rows on first authenticated contact. The
// identity provider owns accounts; this side only mirrors them and seeds
// the signup grant.
type UserService struct {
	store  store.Store
	ledger *ledger.Service
	log    *logrus.Logger
}

func NewUserService(st store.Store, lg *ledger.Service, log *logrus.Logger) *UserService {
	return &UserService{store: st, ledger: lg, log: log}
}

// EnsureUser returns the row for the authenticated identity, creating it
// on first sight. New users start at zero and receive the signup grant
// through the ledger, so the ledger sum matches the cached balance from
// the first request on.
func (s *UserService) EnsureUser(ctx context.Context, userID, email string) (*model.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	user = &model.User{ID: userID, Email: email, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a provisioning race; the winner wrote the grant.
			if existing, getErr := s.store.GetUser(ctx, userID); getErr == nil {
				return existing, nil
			}
			return s.store.GetUserByEmail(ctx, email)
		}
		return nil, err
	}

	if err := s.ledger.Add(ctx, userID, SignupCredits, "signup grant", map[string]any{"email": email}); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"credits": SignupCredits,
	}).Info("provisioned new user")

	return s.store.GetUser(ctx, userID)
}
