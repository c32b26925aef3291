package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/provider"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
)

// fakeProvider scripts provider behavior for state machine tests.
type fakeProvider struct {
	name        string
	taskID      string
	submitErr   error
	pollResults []provider.PollResult
	pollErr     error
	asset       provider.Asset
	fetchErr    error

	mu          sync.Mutex
	pollCalls   int
	submitCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SubmitPreview(_ context.Context, _ model.Brief) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	return f.taskID, f.submitErr
}

func (f *fakeProvider) SubmitFull(_ context.Context, _ model.Brief, _ provider.Meta) (string, error) {
	return f.SubmitPreview(context.Background(), model.Brief{})
}

func (f *fakeProvider) Poll(_ context.Context, _ string) (provider.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return provider.PollResult{}, f.pollErr
	}
	idx := f.pollCalls
	f.pollCalls++
	if idx >= len(f.pollResults) {
		idx = len(f.pollResults) - 1
	}
	return f.pollResults[idx], nil
}

func (f *fakeProvider) FetchAsset(_ context.Context, _ string) (provider.Asset, error) {
	if f.fetchErr != nil {
		return provider.Asset{}, f.fetchErr
	}
	return f.asset, nil
}

type recordedNotification struct {
	trackID string
	status  model.TrackStatus
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (f *fakeNotifier) NotifyStatus(trackID string, status model.TrackStatus, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotification{trackID, status})
}

type fixture struct {
	orch     *Orchestrator
	store    *store.Memory
	ledger   *ledger.Service
	notifier *fakeNotifier
	userID   string
}

func newFixture(t *testing.T, providers ...provider.Provider) *fixture {
	t.Helper()

	st := store.NewMemory()
	log := logrus.New()
	log.SetOutput(io.Discard)

	userID := uuid.New().String()
	if err := st.CreateUser(context.Background(), &model.User{ID: userID, Email: "u@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	lg := ledger.New(st, log)
	events := webhook.NewDispatcher(st, time.Second, log)
	notifier := &fakeNotifier{}

	return &fixture{
		orch:     New(st, provider.NewRegistry(providers...), lg, events, notifier, log),
		store:    st,
		ledger:   lg,
		notifier: notifier,
		userID:   userID,
	}
}

func countryBrief() model.Brief {
	return model.Brief{Genre: "Country", DurationSec: 30, Vocals: model.VocalsNone}
}

func (fx *fixture) grant(t *testing.T, amount int) {
	t.Helper()
	if err := fx.ledger.Add(context.Background(), fx.userID, amount, "signup_grant", nil); err != nil {
		t.Fatalf("grant: %v", err)
	}
}

func (fx *fixture) debit(t *testing.T, amount int) {
	t.Helper()
	ok, err := fx.ledger.Deduct(context.Background(), fx.userID, amount, "track_generation", nil)
	if err != nil || !ok {
		t.Fatalf("debit: (%v, %v)", ok, err)
	}
}

func (fx *fixture) submit(t *testing.T, providerName string, cost int) (*model.Track, *model.Job, error) {
	t.Helper()
	return fx.orch.Submit(context.Background(), SubmitParams{
		UserID:   fx.userID,
		Brief:    countryBrief(),
		Type:     model.TrackTypeInstrumental,
		Provider: providerName,
		Fidelity: model.FidelityPreview,
		Cost:     cost,
	})
}

func TestSubmitSuccess(t *testing.T) {
	fake := &fakeProvider{name: "loudly", taskID: "task-7"}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	track, job, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if track.Status != model.TrackStatusRendering {
		t.Errorf("track status = %s, want rendering", track.Status)
	}
	if job.State != model.JobStateRunning {
		t.Errorf("job state = %s, want running", job.State)
	}
	if job.ProviderTaskID != "task-7" {
		t.Errorf("provider task id = %q", job.ProviderTaskID)
	}
	if track.PromptHash == "" {
		t.Error("prompt hash must be computed at creation")
	}

	// No refund on success.
	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 9 {
		t.Errorf("balance = %d, want 9", balance)
	}

	// Persisted state matches returned state.
	stored, _ := fx.store.GetTrack(context.Background(), track.ID)
	if stored.Status != model.TrackStatusRendering {
		t.Errorf("stored track status = %s", stored.Status)
	}
}

// A vocals song with the eleven integration disabled: the submit step
// fails before any remote call, the pair lands in failed/error, and the
// debited credits come back.
func TestSubmitUnavailableProviderRefunds(t *testing.T) {
	fx := newFixture(t, provider.NewEleven(false))
	fx.grant(t, 10)
	fx.debit(t, 8)

	track, job, err := fx.orch.Submit(context.Background(), SubmitParams{
		UserID:   fx.userID,
		Brief:    model.Brief{Genre: "Pop", DurationSec: 180, Vocals: model.VocalsMale},
		Type:     model.TrackTypeSong,
		Provider: "eleven",
		Fidelity: model.FidelityFull,
		Cost:     8,
	})
	if err == nil {
		t.Fatal("expected submission error")
	}
	if !provider.Unavailable(err) {
		t.Errorf("error should classify as unavailable, got %v", err)
	}

	if track.Status != model.TrackStatusError {
		t.Errorf("track status = %s, want error", track.Status)
	}
	if job.State != model.JobStateFailed {
		t.Errorf("job state = %s, want failed", job.State)
	}
	if job.Error == "" {
		t.Error("job must carry the provider error text")
	}

	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 10 {
		t.Errorf("balance after refund = %d, want 10", balance)
	}
}

func TestSubmitRemoteFailureRefunds(t *testing.T) {
	fake := &fakeProvider{name: "loudly", submitErr: errors.New("upstream 500")}
	fx := newFixture(t, fake)
	fx.grant(t, 5)
	fx.debit(t, 2)

	_, _, err := fx.submit(t, "loudly", 2)
	if err == nil {
		t.Fatal("expected submission error")
	}

	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 5 {
		t.Errorf("balance after refund = %d, want 5", balance)
	}
}

// Full (job state, poll result) transition table.
func TestPollTransitionTable(t *testing.T) {
	tests := []struct {
		name       string
		poll       provider.PollResult
		fetchErr   error
		wantJob    model.JobState
		wantTrack  model.TrackStatus
		wantErr    bool
		wantAssets bool
	}{
		{
			name:       "running + done",
			poll:       provider.PollResult{State: provider.StateDone, PreviewURL: "https://cdn/p.mp3"},
			wantJob:    model.JobStateDone,
			wantTrack:  model.TrackStatusReady,
			wantAssets: true,
		},
		{
			name:      "running + failed",
			poll:      provider.PollResult{State: provider.StateFailed},
			wantJob:   model.JobStateFailed,
			wantTrack: model.TrackStatusError,
		},
		{
			name:      "running + running",
			poll:      provider.PollResult{State: provider.StateRunning},
			wantJob:   model.JobStateRunning,
			wantTrack: model.TrackStatusRendering,
		},
		{
			name:      "running + done but asset fetch fails stays running",
			poll:      provider.PollResult{State: provider.StateDone},
			fetchErr:  errors.New("asset not ready"),
			wantJob:   model.JobStateRunning,
			wantTrack: model.TrackStatusRendering,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{
				name:        "loudly",
				taskID:      "task-1",
				pollResults: []provider.PollResult{tt.poll},
				asset:       provider.Asset{URL: "https://cdn/full.mp3", Stems: []string{"https://cdn/stems.zip"}},
				fetchErr:    tt.fetchErr,
			}
			fx := newFixture(t, fake)
			fx.grant(t, 10)
			fx.debit(t, 1)

			track, job, err := fx.submit(t, "loudly", 1)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}

			state, err := fx.orch.Poll(context.Background(), job.ID)
			if tt.wantErr != (err != nil) {
				t.Fatalf("poll err = %v, wantErr=%v", err, tt.wantErr)
			}
			if state != tt.wantJob {
				t.Errorf("job state = %s, want %s", state, tt.wantJob)
			}

			storedTrack, _ := fx.store.GetTrack(context.Background(), track.ID)
			storedJob, _ := fx.store.GetJob(context.Background(), job.ID)
			if storedJob.State != tt.wantJob {
				t.Errorf("stored job state = %s, want %s", storedJob.State, tt.wantJob)
			}
			if storedTrack.Status != tt.wantTrack {
				t.Errorf("stored track status = %s, want %s", storedTrack.Status, tt.wantTrack)
			}
			if storedTrack.Status != model.StatusForJobState(storedJob.State) {
				t.Error("track status must remain a pure function of job state")
			}

			if tt.wantAssets {
				if storedTrack.PreviewURL != "https://cdn/p.mp3" {
					t.Errorf("preview url = %q", storedTrack.PreviewURL)
				}
				if storedTrack.FullURL != "https://cdn/full.mp3" {
					t.Errorf("full url = %q", storedTrack.FullURL)
				}
				if storedTrack.StemsZipURL != "https://cdn/stems.zip" {
					t.Errorf("stems url = %q", storedTrack.StemsZipURL)
				}
				if len(storedTrack.License) == 0 {
					t.Error("completed track must carry license metadata")
				}
			} else if storedTrack.Status == model.TrackStatusError && storedTrack.FullURL != "" {
				t.Error("failed track must not carry asset urls")
			}
		})
	}
}

func TestPollTerminalStatesAbsorbing(t *testing.T) {
	fake := &fakeProvider{
		name:        "loudly",
		taskID:      "task-1",
		pollResults: []provider.PollResult{{State: provider.StateDone, PreviewURL: "https://cdn/p.mp3"}},
		asset:       provider.Asset{URL: "https://cdn/full.mp3"},
	}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	_, job, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := fx.orch.Poll(context.Background(), job.ID); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	pollsAfterDone := fake.pollCalls

	// Further polls must not call the provider or change state.
	for i := 0; i < 3; i++ {
		state, err := fx.orch.Poll(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if state != model.JobStateDone {
			t.Errorf("poll %d state = %s, want done", i, state)
		}
	}
	if fake.pollCalls != pollsAfterDone {
		t.Error("terminal job must not be polled against the provider")
	}
}

// End-to-end: Country 30s instrumental, 1 credit, loudly, running then
// done with a preview URL, exactly one track.ready webhook.
func TestEndToEndPreviewScenario(t *testing.T) {
	fake := &fakeProvider{
		name:   "loudly",
		taskID: "task-42",
		pollResults: []provider.PollResult{
			{State: provider.StateRunning},
			{State: provider.StateDone, PreviewURL: "https://cdn.loudly.com/preview/x.mp3"},
		},
		asset: provider.Asset{URL: "https://cdn.loudly.com/full/x.wav"},
	}
	fx := newFixture(t, fake)
	fx.grant(t, 10)

	var mu sync.Mutex
	events := make(map[string]int)
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		events[r.Header.Get("X-CRAV-Event")]++
		mu.Unlock()
	}))
	defer subscriber.Close()

	dispatcher := webhook.NewDispatcher(fx.store, time.Second, logrus.New())
	if _, err := dispatcher.Subscribe(context.Background(), subscriber.URL,
		[]string{"track.created", "track.ready"}, "s3cret"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	fx.debit(t, 1)
	track, job, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// First poll: still running, no transition.
	state, err := fx.orch.Poll(context.Background(), job.ID)
	if err != nil || state != model.JobStateRunning {
		t.Fatalf("first poll = (%s, %v), want running", state, err)
	}

	// Second poll: done.
	state, err = fx.orch.Poll(context.Background(), job.ID)
	if err != nil || state != model.JobStateDone {
		t.Fatalf("second poll = (%s, %v), want done", state, err)
	}

	stored, _ := fx.store.GetTrack(context.Background(), track.ID)
	if stored.Status != model.TrackStatusReady {
		t.Errorf("track status = %s, want ready", stored.Status)
	}
	if stored.PreviewURL != "https://cdn.loudly.com/preview/x.mp3" {
		t.Errorf("preview url = %q", stored.PreviewURL)
	}

	mu.Lock()
	defer mu.Unlock()
	if events["track.ready"] != 1 {
		t.Errorf("track.ready deliveries = %d, want exactly 1", events["track.ready"])
	}
	if events["track.created"] != 1 {
		t.Errorf("track.created deliveries = %d, want 1", events["track.created"])
	}
}

func TestAdminRetry(t *testing.T) {
	fake := &fakeProvider{name: "loudly", submitErr: errors.New("upstream 500")}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	track, job, err := fx.submit(t, "loudly", 1)
	if err == nil {
		t.Fatal("expected submit failure")
	}

	// Provider recovers; retry reuses the same job row.
	fake.mu.Lock()
	fake.submitErr = nil
	fake.taskID = "task-retry"
	fake.mu.Unlock()

	retried, err := fx.orch.AdminRetry(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("admin retry: %v", err)
	}
	if retried.ID != job.ID {
		t.Error("retry must reuse the existing job row, not create a new one")
	}
	if retried.State != model.JobStateRunning {
		t.Errorf("retried job state = %s, want running", retried.State)
	}
	if retried.Error != "" {
		t.Errorf("retried job error = %q, want cleared", retried.Error)
	}

	stored, _ := fx.store.GetTrack(context.Background(), track.ID)
	if stored.Status != model.TrackStatusRendering {
		t.Errorf("track status after retry = %s, want rendering", stored.Status)
	}

	// Retry does not touch credits: the refund from the failed submit
	// stands and no second debit happened.
	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestAdminRetryRequiresFailedJob(t *testing.T) {
	fake := &fakeProvider{name: "loudly", taskID: "t1"}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	track, _, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := fx.orch.AdminRetry(context.Background(), track.ID); err == nil {
		t.Error("retrying a running job must be rejected")
	}
}

func TestAdminFail(t *testing.T) {
	fake := &fakeProvider{name: "loudly", taskID: "t1"}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	track, job, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := fx.orch.AdminFail(context.Background(), track.ID, "stale: provider never reported"); err != nil {
		t.Fatalf("admin fail: %v", err)
	}

	storedJob, _ := fx.store.GetJob(context.Background(), job.ID)
	if storedJob.State != model.JobStateFailed {
		t.Errorf("job state = %s, want failed", storedJob.State)
	}
	if storedJob.Error != "stale: provider never reported" {
		t.Errorf("job error = %q", storedJob.Error)
	}

	storedTrack, _ := fx.store.GetTrack(context.Background(), track.ID)
	if storedTrack.Status != model.TrackStatusError {
		t.Errorf("track status = %s, want error", storedTrack.Status)
	}

	// No credit movement on an admin fail.
	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 9 {
		t.Errorf("balance = %d, want 9", balance)
	}
}

func TestAdminDisable(t *testing.T) {
	fake := &fakeProvider{
		name:        "loudly",
		taskID:      "t1",
		pollResults: []provider.PollResult{{State: provider.StateDone, PreviewURL: "https://cdn/p.mp3"}},
		asset:       provider.Asset{URL: "https://cdn/full.mp3", Stems: []string{"https://cdn/stems.zip"}},
	}
	fx := newFixture(t, fake)
	fx.grant(t, 10)
	fx.debit(t, 1)

	track, job, err := fx.submit(t, "loudly", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := fx.orch.Poll(context.Background(), job.ID); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if err := fx.orch.AdminDisable(context.Background(), track.ID); err != nil {
		t.Fatalf("admin disable: %v", err)
	}

	stored, _ := fx.store.GetTrack(context.Background(), track.ID)
	if stored.Status != model.TrackStatusError {
		t.Errorf("track status = %s, want error", stored.Status)
	}
	if stored.PreviewURL != "" || stored.FullURL != "" || stored.StemsZipURL != "" {
		t.Error("disable must clear all asset urls")
	}

	balance, _ := fx.ledger.Balance(context.Background(), fx.userID)
	if balance != 9 {
		t.Errorf("balance = %d, want 9 (disable never refunds)", balance)
	}
}
