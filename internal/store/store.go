// Package store is the record-store boundary: CRUD and query operations
// over users, tracks, jobs, the credit ledger and webhook subscriptions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cravaudio/api/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// TrackFilters narrows track listings. Zero values mean "no filter".
// Results are ordered by creation time descending.
type TrackFilters struct {
	Status   model.TrackStatus
	Provider string
	UserID   string
	Start    *time.Time
	End      *time.Time
	Limit    int
	Offset   int
}

// Store is implemented by the postgres store and the in-memory store used
// in tests.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ApplyCreditDelta adjusts the cached balance with a transactional
	// increment. The delta may be negative; failures must be treated as
	// fatal by callers, never retried with a read-then-write.
	ApplyCreditDelta(ctx context.Context, userID string, delta int) error
	CountUsers(ctx context.Context) (int, error)

	// Tracks
	CreateTrack(ctx context.Context, track *model.Track) error
	GetTrack(ctx context.Context, id string) (*model.Track, error)
	SaveTrack(ctx context.Context, track *model.Track) error
	ListTracks(ctx context.Context, filters TrackFilters) ([]*model.Track, error)

	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	LatestJobForTrack(ctx context.Context, trackID string) (*model.Job, error)
	SaveJob(ctx context.Context, job *model.Job) error
	// SaveTrackAndJob persists both rows in one transaction so the track
	// status and job state never diverge.
	SaveTrackAndJob(ctx context.Context, track *model.Track, job *model.Job) error
	CountActiveJobs(ctx context.Context, userID string) (int, error)

	// Credit ledger
	AppendTransaction(ctx context.Context, tx *model.CreditTransaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error)
	SumTransactions(ctx context.Context, userID string) (int, error)
	TotalCreditsIssued(ctx context.Context) (int, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, sub *model.WebhookSubscription) error
	DeactivateSubscription(ctx context.Context, id string) error
	ListActiveSubscriptions(ctx context.Context) ([]*model.WebhookSubscription, error)
}
