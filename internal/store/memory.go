package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cravaudio/api/internal/model"
)

// Memory is an in-memory Store used by tests and by standalone
// deployments without postgres.
type Memory struct {
	mu sync.RWMutex

	users         map[string]*model.User
	tracks        map[string]*model.Track
	jobs          map[string]*model.Job
	transactions  []*model.CreditTransaction
	subscriptions map[string]*model.WebhookSubscription
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]*model.User),
		tracks:        make(map[string]*model.Track),
		jobs:          make(map[string]*model.Job),
		subscriptions: make(map[string]*model.WebhookSubscription),
	}
}

// Users

func (s *Memory) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Memory) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) ApplyCreditDelta(_ context.Context, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.Credits += delta
	return nil
}

func (s *Memory) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Tracks

func (s *Memory) CreateTrack(_ context.Context, track *model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tracks[track.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *track
	s.tracks[track.ID] = &cp
	return nil
}

func (s *Memory) GetTrack(_ context.Context, id string) (*model.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if track, ok := s.tracks[id]; ok {
		cp := *track
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *Memory) SaveTrack(_ context.Context, track *model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *track
	s.tracks[track.ID] = &cp
	return nil
}

func (s *Memory) ListTracks(_ context.Context, filters TrackFilters) ([]*model.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Track, 0)
	for _, track := range s.tracks {
		if filters.Status != "" && track.Status != filters.Status {
			continue
		}
		if filters.Provider != "" && track.Provider != filters.Provider {
			continue
		}
		if filters.UserID != "" && track.UserID != filters.UserID {
			continue
		}
		if filters.Start != nil && track.CreatedAt.Before(*filters.Start) {
			continue
		}
		if filters.End != nil && track.CreatedAt.After(*filters.End) {
			continue
		}
		cp := *track
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := filters.Offset
	if start > len(result) {
		start = len(result)
	}
	end := len(result)
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}
	return result[start:end], nil
}

// Jobs

func (s *Memory) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Memory) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if job, ok := s.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *Memory) LatestJobForTrack(_ context.Context, trackID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Job
	for _, job := range s.jobs {
		if job.TrackID != trackID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Memory) SaveJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Memory) SaveTrackAndJob(_ context.Context, track *model.Track, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trackCp := *track
	jobCp := *job
	s.tracks[track.ID] = &trackCp
	s.jobs[job.ID] = &jobCp
	return nil
}

func (s *Memory) CountActiveJobs(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, job := range s.jobs {
		if job.State != model.JobStateQueued && job.State != model.JobStateRunning {
			continue
		}
		track, ok := s.tracks[job.TrackID]
		if ok && track.UserID == userID {
			count++
		}
	}
	return count, nil
}

// Credit ledger

func (s *Memory) AppendTransaction(_ context.Context, tx *model.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (s *Memory) ListTransactions(_ context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.CreditTransaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID != userID {
			continue
		}
		cp := *s.transactions[i]
		result = append(result, &cp)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Memory) SumTransactions(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := 0
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			sum += tx.Delta
		}
	}
	return sum, nil
}

func (s *Memory) TotalCreditsIssued(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := 0
	for _, tx := range s.transactions {
		if tx.Delta > 0 {
			sum += tx.Delta
		}
	}
	return sum, nil
}

// Webhook subscriptions

func (s *Memory) CreateSubscription(_ context.Context, sub *model.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; exists {
		return ErrAlreadyExists
	}
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

func (s *Memory) DeactivateSubscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Active = false
	return nil
}

func (s *Memory) ListActiveSubscriptions(_ context.Context) ([]*model.WebhookSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.WebhookSubscription, 0)
	for _, sub := range s.subscriptions {
		if sub.Active {
			cp := *sub
			result = append(result, &cp)
		}
	}
	return result, nil
}
