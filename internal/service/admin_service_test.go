package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/orchestrator"
	"github.com/cravaudio/api/internal/provider"
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
)

func newAdminFixture(t *testing.T, providers ...provider.Provider) (*AdminService, *store.Memory, *ledger.Service, string) {
	t.Helper()

	st := store.NewMemory()
	log := logrus.New()
	log.SetOutput(io.Discard)

	userID := uuid.New().String()
	if err := st.CreateUser(context.Background(), &model.User{ID: userID, Email: "admin-fixture@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	lg := ledger.New(st, log)
	events := webhook.NewDispatcher(st, time.Second, log)
	orch := orchestrator.New(st, provider.NewRegistry(providers...), lg, events, nil, log)
	scheduler := &recordingScheduler{}

	return NewAdminService(st, orch, lg, scheduler, time.Second, log), st, lg, userID
}

func seedTrack(t *testing.T, st *store.Memory, userID string, status model.TrackStatus, providerName string) *model.Track {
	t.Helper()
	track := &model.Track{
		ID:        uuid.New().String(),
		UserID:    userID,
		Brief:     model.Brief{Genre: "Country", DurationSec: 30, Vocals: model.VocalsNone},
		Type:      model.TrackTypeInstrumental,
		Provider:  providerName,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateTrack(context.Background(), track); err != nil {
		t.Fatalf("seed track: %v", err)
	}
	return track
}

func TestAdminListTracksFiltered(t *testing.T) {
	svc, st, _, userID := newAdminFixture(t)

	seedTrack(t, st, userID, model.TrackStatusReady, "loudly")
	seedTrack(t, st, userID, model.TrackStatusError, "loudly")
	seedTrack(t, st, userID, model.TrackStatusReady, "beatoven")

	ready, err := svc.ListTracks(context.Background(), store.TrackFilters{Status: model.TrackStatusReady})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ready) != 2 {
		t.Errorf("ready tracks = %d, want 2", len(ready))
	}

	loudly, err := svc.ListTracks(context.Background(), store.TrackFilters{Provider: "loudly"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(loudly) != 2 {
		t.Errorf("loudly tracks = %d, want 2", len(loudly))
	}
}

func TestAdminAdjustCredits(t *testing.T) {
	svc, _, lg, userID := newAdminFixture(t)

	balance, err := svc.AdjustCredits(context.Background(), userID, 25, "goodwill")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if balance != 25 {
		t.Errorf("balance = %d, want 25", balance)
	}

	if balance, err = svc.AdjustCredits(context.Background(), userID, -5, "chargeback"); err != nil {
		t.Fatalf("negative adjust: %v", err)
	}
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	if err := lg.VerifyIntegrity(context.Background(), userID); err != nil {
		t.Errorf("ledger integrity after adjustments: %v", err)
	}
}

func TestAdminStats(t *testing.T) {
	svc, st, lg, userID := newAdminFixture(t)

	seedTrack(t, st, userID, model.TrackStatusReady, "loudly")
	seedTrack(t, st, userID, model.TrackStatusReady, "beatoven")
	errored := seedTrack(t, st, userID, model.TrackStatusError, "loudly")

	job := &model.Job{
		ID:        uuid.New().String(),
		TrackID:   errored.ID,
		Provider:  "loudly",
		State:     model.JobStateFailed,
		Error:     "upstream 500",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	if err := lg.Add(context.Background(), userID, 100, "purchase: Starter", nil); err != nil {
		t.Fatalf("grant: %v", err)
	}

	stats, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.TotalTracks != 3 {
		t.Errorf("total tracks = %d, want 3", stats.TotalTracks)
	}
	if stats.TracksByStatus["ready"] != 2 || stats.TracksByStatus["error"] != 1 {
		t.Errorf("tracks by status = %v", stats.TracksByStatus)
	}
	if stats.TracksByProvider["loudly"] != 2 {
		t.Errorf("tracks by provider = %v", stats.TracksByProvider)
	}
	if stats.TotalUsers != 1 {
		t.Errorf("total users = %d, want 1", stats.TotalUsers)
	}
	if stats.TotalCreditsIssued != 100 {
		t.Errorf("credits issued = %d, want 100", stats.TotalCreditsIssued)
	}
	if len(stats.RecentErrors) != 1 || stats.RecentErrors[0].Error != "upstream 500" {
		t.Errorf("recent errors = %+v", stats.RecentErrors)
	}
}
