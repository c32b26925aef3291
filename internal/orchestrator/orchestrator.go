// Package orchestrator drives a track and its job through
// queued → rendering → ready/error, calling the provider adapter and
// reconciling credit refunds and webhook emission. The track's visible
// status is always written together with the job state that implies it.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/license"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/provider"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
)

// StatusNotifier receives live status transitions for connected clients.
type StatusNotifier interface {
	NotifyStatus(trackID string, status model.TrackStatus, errMsg string)
}

// jobPayload is persisted on the job row so a retry can replay the
// original request.
type jobPayload struct {
	Brief    model.Brief    `json:"brief"`
	Fidelity model.Fidelity `json:"fidelity"`
}

type Orchestrator struct {
	store     store.Store
	providers *provider.Registry
	ledger    *ledger.Service
	events    *webhook.Dispatcher
	notifier  StatusNotifier
	log       *logrus.Logger
}

func New(st store.Store, providers *provider.Registry, lg *ledger.Service, events *webhook.Dispatcher, notifier StatusNotifier, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		store:     st,
		providers: providers,
		ledger:    lg,
		events:    events,
		notifier:  notifier,
		log:       log,
	}
}

func (o *Orchestrator) notify(track *model.Track, errMsg string) {
	if o.notifier != nil {
		o.notifier.NotifyStatus(track.ID, track.Status, errMsg)
	}
}

// SubmitParams carries an accepted brief whose cost has already been
// debited.
type SubmitParams struct {
	UserID   string
	Brief    model.Brief
	Type     model.TrackType
	Provider string
	Fidelity model.Fidelity
	Cost     int
}

// Submit creates the track and job pair, calls the provider, and settles
// the outcome. Submission failure is compensated with an explicit refund
// ledger entry since the debit happened before this call.
func (o *Orchestrator) Submit(ctx context.Context, params SubmitParams) (*model.Track, *model.Job, error) {
	now := time.Now()
	promptHash := license.PromptHash(params.Brief)

	track := &model.Track{
		ID:          uuid.New().String(),
		UserID:      params.UserID,
		Title:       params.Brief.Title,
		Brief:       params.Brief,
		DurationSec: params.Brief.DurationSec,
		Type:        params.Type,
		Provider:    params.Provider,
		Status:      model.TrackStatusQueued,
		PromptHash:  promptHash,
		CostCredits: params.Cost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if track.Title == "" {
		track.Title = track.DisplayTitle()
	}

	payload, err := json.Marshal(jobPayload{Brief: params.Brief, Fidelity: params.Fidelity})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		TrackID:   track.ID,
		Provider:  params.Provider,
		Payload:   payload,
		State:     model.JobStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.CreateTrack(ctx, track); err != nil {
		return nil, nil, fmt.Errorf("create track: %w", err)
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	o.events.Emit(ctx, model.EventTrackCreated, track)

	if err := o.submitToProvider(ctx, track, job, params.Fidelity); err != nil {
		o.refund(ctx, track)
		return track, job, err
	}

	return track, job, nil
}

// submitToProvider performs the provider call and the resulting
// transition: queued → running/rendering on success, failed/error on
// failure. Track and job are co-written in one store transaction.
func (o *Orchestrator) submitToProvider(ctx context.Context, track *model.Track, job *model.Job, fidelity model.Fidelity) error {
	prov, err := o.providers.Get(track.Provider)

	var taskID string
	if err == nil {
		if fidelity == model.FidelityFull {
			taskID, err = prov.SubmitFull(ctx, track.Brief, nil)
		} else {
			taskID, err = prov.SubmitPreview(ctx, track.Brief)
		}
	}

	now := time.Now()
	if err != nil {
		job.State = model.JobStateFailed
		job.Error = err.Error()
		job.UpdatedAt = now
		track.Status = model.StatusForJobState(job.State)
		track.UpdatedAt = now

		if saveErr := o.store.SaveTrackAndJob(ctx, track, job); saveErr != nil {
			o.log.WithError(saveErr).WithField("track_id", track.ID).Error("failed to persist submission failure")
		}
		o.notify(track, job.Error)

		o.log.WithFields(logrus.Fields{
			"track_id": track.ID,
			"provider": track.Provider,
		}).WithError(err).Warn("provider submission failed")
		return err
	}

	job.ProviderTaskID = taskID
	job.State = model.JobStateRunning
	job.Error = ""
	job.UpdatedAt = now
	track.Status = model.StatusForJobState(job.State)
	track.UpdatedAt = now

	if err := o.store.SaveTrackAndJob(ctx, track, job); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}
	o.notify(track, "")

	o.log.WithFields(logrus.Fields{
		"track_id": track.ID,
		"job_id":   job.ID,
		"provider": track.Provider,
		"task_id":  taskID,
	}).Info("job submitted")
	return nil
}

// refund writes the compensating ledger entry for a failed submission.
// The debit and the submission are not atomic, so this is an explicit
// reversing transaction, not a rollback.
func (o *Orchestrator) refund(ctx context.Context, track *model.Track) {
	if track.CostCredits <= 0 {
		return
	}
	err := o.ledger.Add(ctx, track.UserID, track.CostCredits, "refund: generation failed before provider attempt",
		map[string]any{"trackId": track.ID})
	if err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"track_id": track.ID,
			"user_id":  track.UserID,
			"credits":  track.CostCredits,
		}).Error("refund failed; manual reconciliation required")
	}
}

// Poll advances a running job by one provider status check. Terminal
// states are absorbing: polling a done or failed job is a no-op.
func (o *Orchestrator) Poll(ctx context.Context, jobID string) (model.JobState, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Terminal() {
		return job.State, nil
	}
	if job.State == model.JobStateQueued {
		// Submission has not completed yet; nothing to poll.
		return job.State, nil
	}

	track, err := o.store.GetTrack(ctx, job.TrackID)
	if err != nil {
		return "", err
	}

	prov, err := o.providers.Get(job.Provider)
	if err != nil {
		return job.State, err
	}

	result, err := prov.Poll(ctx, job.ProviderTaskID)
	if err != nil {
		// Transient poll errors leave the state machine untouched; the
		// driver retries on its next tick.
		return job.State, err
	}

	switch result.State {
	case provider.StateDone:
		return o.complete(ctx, track, job, prov, result)
	case provider.StateFailed:
		return o.fail(ctx, track, job, "provider reported generation failure")
	default:
		return job.State, nil
	}
}

// complete fetches the finished asset and moves the pair to done/ready.
func (o *Orchestrator) complete(ctx context.Context, track *model.Track, job *model.Job, prov provider.Provider, result provider.PollResult) (model.JobState, error) {
	asset, err := prov.FetchAsset(ctx, job.ProviderTaskID)
	if err != nil {
		// Asset fetch can fail transiently after a done report; keep the
		// job running and let the driver retry.
		return job.State, err
	}

	if result.PreviewURL != "" {
		track.PreviewURL = result.PreviewURL
	}
	track.FullURL = asset.URL
	if len(asset.Stems) > 0 {
		track.StemsZipURL = asset.Stems[0]
	}

	fidelity := model.FidelityFull
	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err == nil && payload.Fidelity != "" {
		fidelity = payload.Fidelity
	}

	doc := license.Generate(track.ID, track.Brief, job.Provider, job.ProviderTaskID, track.PromptHash, fidelity)
	raw, err := json.Marshal(doc)
	if err != nil {
		return job.State, fmt.Errorf("marshal license: %w", err)
	}
	track.License = raw

	now := time.Now()
	job.State = model.JobStateDone
	job.Error = ""
	job.UpdatedAt = now
	track.Status = model.StatusForJobState(job.State)
	track.UpdatedAt = now

	if err := o.store.SaveTrackAndJob(ctx, track, job); err != nil {
		return job.State, fmt.Errorf("persist completion: %w", err)
	}

	o.notify(track, "")
	o.events.Emit(ctx, model.EventTrackReady, track)

	o.log.WithFields(logrus.Fields{
		"track_id": track.ID,
		"job_id":   job.ID,
		"provider": job.Provider,
	}).Info("track ready")
	return job.State, nil
}

// fail moves the pair to failed/error. No refund: the provider made a
// real attempt, the cost is consumed.
func (o *Orchestrator) fail(ctx context.Context, track *model.Track, job *model.Job, reason string) (model.JobState, error) {
	now := time.Now()
	job.State = model.JobStateFailed
	job.Error = reason
	job.UpdatedAt = now
	track.Status = model.StatusForJobState(job.State)
	track.UpdatedAt = now

	if err := o.store.SaveTrackAndJob(ctx, track, job); err != nil {
		return job.State, fmt.Errorf("persist failure: %w", err)
	}

	o.notify(track, reason)
	o.log.WithFields(logrus.Fields{
		"track_id": track.ID,
		"job_id":   job.ID,
	}).Warn("job failed: " + reason)
	return job.State, nil
}

// AdminRetry moves a failed job back to queued on the same row, clears
// the error, and re-submits. It does not touch credits.
func (o *Orchestrator) AdminRetry(ctx context.Context, trackID string) (*model.Job, error) {
	track, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	job, err := o.store.LatestJobForTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateFailed {
		return nil, fmt.Errorf("retry requires a failed job, current state is %s", job.State)
	}

	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal job payload: %w", err)
	}

	now := time.Now()
	job.State = model.JobStateQueued
	job.Error = ""
	job.ProviderTaskID = ""
	job.UpdatedAt = now
	track.Status = model.StatusForJobState(job.State)
	track.UpdatedAt = now

	if err := o.store.SaveTrackAndJob(ctx, track, job); err != nil {
		return nil, fmt.Errorf("persist retry: %w", err)
	}
	o.notify(track, "")
	o.events.Emit(ctx, model.EventTrackUpdated, track)

	if err := o.submitToProvider(ctx, track, job, payload.Fidelity); err != nil {
		return job, err
	}
	return job, nil
}

// AdminFail forces the pair to failed/error with a supplied reason. It
// does not touch credits; unlike an automatic submission failure this is
// an operator decision, not a configuration fault.
func (o *Orchestrator) AdminFail(ctx context.Context, trackID, reason string) error {
	track, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	job, err := o.store.LatestJobForTrack(ctx, trackID)
	if err != nil {
		return err
	}

	if _, err := o.fail(ctx, track, job, reason); err != nil {
		return err
	}
	o.events.Emit(ctx, model.EventTrackUpdated, track)
	return nil
}

// AdminDisable soft-disables a track: status error, all asset URLs
// cleared, job untouched, credits untouched.
func (o *Orchestrator) AdminDisable(ctx context.Context, trackID string) error {
	track, err := o.store.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}

	track.Status = model.TrackStatusError
	track.PreviewURL = ""
	track.FullURL = ""
	track.StemsZipURL = ""
	track.UpdatedAt = time.Now()

	if err := o.store.SaveTrack(ctx, track); err != nil {
		return fmt.Errorf("persist disable: %w", err)
	}

	o.notify(track, "disabled by administrator")
	o.events.Emit(ctx, model.EventTrackUpdated, track)
	return nil
}
