package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/moderation"
	"github.com/cravaudio/api/internal/orchestrator"
	"github.com/cravaudio/api/internal/pricing"
	"github.com/cravaudio/api/internal/provider"
	"github.com/cravaudio/api/internal/ratelimit"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/worker"
)

// TrackService runs the generation pipeline: moderation, pricing, quota
// checks, the credit debit, and the handoff to the orchestrator.
type TrackService struct {
	store         store.Store
	validate      *validator.Validate
	limiter       *ratelimit.Limiter
	credits       *ledger.Service
	orch          *orchestrator.Orchestrator
	scheduler     worker.Scheduler
	flags         pricing.Flags
	allowExplicit bool
	pollInterval  time.Duration
	log           *logrus.Logger
}

// TrackServiceOptions carries the deployment toggles.
type TrackServiceOptions struct {
	Flags         pricing.Flags
	AllowExplicit bool
	PollInterval  time.Duration
}

func NewTrackService(st store.Store, v *validator.Validate, limiter *ratelimit.Limiter, credits *ledger.Service, orch *orchestrator.Orchestrator, scheduler worker.Scheduler, opts TrackServiceOptions, log *logrus.Logger) *TrackService {
	if opts.PollInterval <= 0 {
		opts.PollInterval = worker.DefaultPollInterval
	}
	return &TrackService{
		store:         st,
		validate:      v,
		limiter:       limiter,
		credits:       credits,
		orch:          orch,
		scheduler:     scheduler,
		flags:         opts.Flags,
		allowExplicit: opts.AllowExplicit,
		pollInterval:  opts.PollInterval,
		log:           log,
	}
}

// GenerateRequest is the track generation payload.
type GenerateRequest struct {
	Brief        model.Brief     `json:"brief"`
	Type         model.TrackType `json:"type" validate:"required,oneof=SONG INSTRUMENTAL JINGLE"`
	Fidelity     model.Fidelity  `json:"fidelity" validate:"omitempty,oneof=preview full"`
	IncludeWav   bool            `json:"includeWav"`
	IncludeStems bool            `json:"includeStems"`
}

// GenerateResponse returns the created track and the debited cost.
type GenerateResponse struct {
	Track       *model.Track `json:"track"`
	JobID       string       `json:"jobId"`
	CostCredits int          `json:"costCredits"`
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// Generate runs the full pipeline for one brief. The debit happens only
// after moderation, pricing and quota checks all pass; a failed provider
// submission is refunded by the orchestrator.
func (s *TrackService) Generate(ctx context.Context, userID string, req *GenerateRequest) (*GenerateResponse, error) {
	if req.Fidelity == "" {
		req.Fidelity = model.FidelityPreview
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, newError(CodeValidationError, "invalid generation request", validationDetails(err))
	}

	if verdict := moderation.CheckBrief(req.Brief, s.allowExplicit); !verdict.Allowed {
		s.log.WithFields(logrus.Fields{
			"user_id":  userID,
			"severity": verdict.Severity,
		}).Info("brief rejected by moderation")
		return nil, newError(CodeModerationRejected, verdict.Reason, map[string]any{"severity": verdict.Severity})
	}

	providerName, err := pricing.SelectProvider(req.Type, req.Brief.Vocals, s.flags)
	if err != nil {
		return nil, newError(CodeProviderUnavailable, err.Error(), nil)
	}
	cost := pricing.CalculateCredits(req.Type, req.Brief.DurationSec, req.IncludeWav, req.IncludeStems)

	if req.Fidelity == model.FidelityPreview {
		if quota := s.limiter.CheckPreviewQuota(userID); !quota.Allowed {
			return nil, newError(CodeRateLimited, "daily preview quota exhausted", map[string]any{
				"remaining": quota.Remaining,
				"resetAt":   quota.ResetAt,
			})
		}
	}

	allowed, err := s.limiter.CheckConcurrentJobs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, newError(CodeRateLimited, "too many concurrent generation jobs", nil)
	}

	debited, err := s.credits.Deduct(ctx, userID, cost, "track_generation", map[string]any{
		"type":     req.Type,
		"provider": providerName,
	})
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, newError(CodeInsufficientCredits, "not enough credits for this generation", map[string]any{"required": cost})
	}

	track, job, err := s.orch.Submit(ctx, orchestrator.SubmitParams{
		UserID:   userID,
		Brief:    req.Brief,
		Type:     req.Type,
		Provider: providerName,
		Fidelity: req.Fidelity,
		Cost:     cost,
	})
	if err != nil {
		if provider.Unavailable(err) {
			return nil, newError(CodeProviderUnavailable, err.Error(), nil)
		}
		return nil, newError(CodeJobFailed, "generation could not be submitted", nil)
	}

	if err := s.scheduler.Schedule(job.ID, s.pollInterval); err != nil {
		// The remote render is already underway; the poll chain can be
		// restarted by an operator, so the request itself still succeeds.
		s.log.WithError(err).WithField("job_id", job.ID).Error("failed to start poll chain")
	}

	return &GenerateResponse{Track: track, JobID: job.ID, CostCredits: cost}, nil
}

// Get returns one of the caller's tracks.
func (s *TrackService) Get(ctx context.Context, userID, trackID string) (*model.Track, error) {
	track, err := s.store.GetTrack(ctx, trackID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(CodeNotFound, "track not found", nil)
	}
	if err != nil {
		return nil, err
	}
	if track.UserID != userID {
		// Ownership is not disclosed.
		return nil, newError(CodeNotFound, "track not found", nil)
	}
	return track, nil
}

// List returns the caller's tracks, newest first.
func (s *TrackService) List(ctx context.Context, userID string, limit, offset int) ([]*model.Track, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListTracks(ctx, store.TrackFilters{UserID: userID, Limit: limit, Offset: offset})
}
