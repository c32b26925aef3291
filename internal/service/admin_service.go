package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/orchestrator"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/worker"
)

// AdminService backs the operator surface: filtered track listings,
// lifecycle overrides, credit adjustments and aggregate stats.
type AdminService struct {
	store        store.Store
	orch         *orchestrator.Orchestrator
	ledger       *ledger.Service
	scheduler    worker.Scheduler
	pollInterval time.Duration
	log          *logrus.Logger
}

func NewAdminService(st store.Store, orch *orchestrator.Orchestrator, lg *ledger.Service, scheduler worker.Scheduler, pollInterval time.Duration, log *logrus.Logger) *AdminService {
	if pollInterval <= 0 {
		pollInterval = worker.DefaultPollInterval
	}
	return &AdminService{
		store:        st,
		orch:         orch,
		ledger:       lg,
		scheduler:    scheduler,
		pollInterval: pollInterval,
		log:          log,
	}
}

// ListTracks returns tracks across all users, newest first.
func (s *AdminService) ListTracks(ctx context.Context, filters store.TrackFilters) ([]*model.Track, error) {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}
	return s.store.ListTracks(ctx, filters)
}

// RetryTrack re-queues a failed generation and restarts its poll chain.
func (s *AdminService) RetryTrack(ctx context.Context, trackID string) (*model.Job, error) {
	job, err := s.orch.AdminRetry(ctx, trackID)
	if err != nil {
		return job, err
	}
	if err := s.scheduler.Schedule(job.ID, s.pollInterval); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Error("failed to restart poll chain after retry")
	}
	return job, nil
}

func (s *AdminService) FailTrack(ctx context.Context, trackID, reason string) error {
	return s.orch.AdminFail(ctx, trackID, reason)
}

func (s *AdminService) DisableTrack(ctx context.Context, trackID string) error {
	return s.orch.AdminDisable(ctx, trackID)
}

// AdjustCredits applies an operator credit adjustment, positive or
// negative, recorded with an admin marker in the ledger.
func (s *AdminService) AdjustCredits(ctx context.Context, userID string, delta int, reason string) (int, error) {
	if err := s.ledger.AdminAdjust(ctx, userID, delta, reason); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, userID)
}

// Stats is the operator dashboard aggregate.
type Stats struct {
	TotalTracks        int             `json:"totalTracks"`
	TracksByStatus     map[string]int  `json:"tracksByStatus"`
	TracksByProvider   map[string]int  `json:"tracksByProvider"`
	TotalUsers         int             `json:"totalUsers"`
	TotalCreditsIssued int             `json:"totalCreditsIssued"`
	RecentErrors       []RecentError  `json:"recentErrors"`
}

type RecentError struct {
	TrackID   string    `json:"trackId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// GetStats aggregates track, user and credit totals plus the most recent
// failures with their job error text.
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	tracks, err := s.store.ListTracks(ctx, store.TrackFilters{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalTracks:      len(tracks),
		TracksByStatus:   make(map[string]int),
		TracksByProvider: make(map[string]int),
	}
	for _, track := range tracks {
		stats.TracksByStatus[string(track.Status)]++
		stats.TracksByProvider[track.Provider]++
	}

	if stats.TotalUsers, err = s.store.CountUsers(ctx); err != nil {
		return nil, err
	}
	if stats.TotalCreditsIssued, err = s.store.TotalCreditsIssued(ctx); err != nil {
		return nil, err
	}

	failed, err := s.store.ListTracks(ctx, store.TrackFilters{Status: model.TrackStatusError, Limit: 10})
	if err != nil {
		return nil, err
	}
	for _, track := range failed {
		entry := RecentError{TrackID: track.ID, Timestamp: track.UpdatedAt}
		if job, err := s.store.LatestJobForTrack(ctx, track.ID); err == nil && job.Error != "" {
			entry.Error = job.Error
		}
		stats.RecentErrors = append(stats.RecentErrors, entry)
	}

	return stats, nil
}
