// Package worker drives queued generation jobs through asynq. Each poll
// task performs one provider status check and re-schedules itself until
// the job reaches a terminal state.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/store"
)

const (
	TaskTypePoll = "track:poll"
	QueuePolls   = "polls"

	// DefaultPollInterval is the delay between successive status checks
	// against a provider.
	DefaultPollInterval = 5 * time.Second
)

type pollTaskPayload struct {
	JobID string `json:"jobId"`
}

// NewPollTask builds the asynq task for one status check of a job.
func NewPollTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(pollTaskPayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePoll, data), nil
}

// Scheduler enqueues a poll for a job after a delay.
type Scheduler interface {
	Schedule(jobID string, delay time.Duration) error
}

// AsynqScheduler schedules polls on the shared asynq client.
type AsynqScheduler struct {
	client *asynq.Client
}

func NewAsynqScheduler(client *asynq.Client) *AsynqScheduler {
	return &AsynqScheduler{client: client}
}

func (s *AsynqScheduler) Schedule(jobID string, delay time.Duration) error {
	task, err := NewPollTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create poll task: %w", err)
	}

	_, err = s.client.Enqueue(task,
		asynq.Queue(QueuePolls),
		asynq.MaxRetry(3),
		asynq.ProcessIn(delay),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue poll task: %w", err)
	}
	return nil
}

// Poller advances a job by one status check and returns its state.
type Poller interface {
	Poll(ctx context.Context, jobID string) (model.JobState, error)
}

// PollWorker processes poll tasks.
type PollWorker struct {
	poller    Poller
	scheduler Scheduler
	interval  time.Duration
	log       *logrus.Logger
}

func NewPollWorker(poller Poller, scheduler Scheduler, interval time.Duration, log *logrus.Logger) *PollWorker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWorker{
		poller:    poller,
		scheduler: scheduler,
		interval:  interval,
		log:       log,
	}
}

// ProcessTask performs one status check. Non-terminal states re-schedule
// the next check; terminal states end the chain. A deleted job ends the
// chain without retrying.
func (w *PollWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload pollTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal poll payload: %w", err)
	}

	log := w.log.WithField("job_id", payload.JobID)

	state, err := w.poller.Poll(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("poll task dropped: job no longer exists")
			return fmt.Errorf("job %s not found: %w", payload.JobID, asynq.SkipRetry)
		}
		// Transient provider or store error: state is unchanged, keep the
		// chain alive and let the next tick retry.
		log.WithError(err).Warn("poll attempt failed")
		if schedErr := w.scheduler.Schedule(payload.JobID, w.interval); schedErr != nil {
			return fmt.Errorf("failed to reschedule after poll error: %w", schedErr)
		}
		return nil
	}

	switch state {
	case model.JobStateDone, model.JobStateFailed:
		log.WithField("state", state).Info("poll chain finished")
		return nil
	default:
		if err := w.scheduler.Schedule(payload.JobID, w.interval); err != nil {
			return fmt.Errorf("failed to schedule next poll: %w", err)
		}
		return nil
	}
}
