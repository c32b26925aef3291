package service

import (
	"context"
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
	"github.com/cravaudio/api/internal/store"
	"github.com/cravaudio/api/internal/webhook"
)

func newCreditFixture(t *testing.T) (*CreditService, *store.Memory, string) {
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
	return NewCreditService(lg, events, log), st, userID
}

func TestCompletePurchase(t *testing.T) {
	svc, st, userID := newCreditFixture(t)

	var mu sync.Mutex
	purchases := 0
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CRAV-Event") == "purchase.completed" {
			mu.Lock()
			purchases++
			mu.Unlock()
		}
	}))
	defer subscriber.Close()

	dispatcher := webhook.NewDispatcher(st, time.Second, logrus.New())
	if _, err := dispatcher.Subscribe(context.Background(), subscriber.URL,
		[]string{"purchase.completed"}, "s3cret"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp, err := svc.CompletePurchase(context.Background(), userID, &PurchaseRequest{
		Bundle:    "pro",
		Reference: "capture-123",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if resp.Credits != 500 {
		t.Errorf("credits = %d, want 500", resp.Credits)
	}
	if resp.Balance != 500 {
		t.Errorf("balance = %d, want 500", resp.Balance)
	}
	if resp.Bundle != "Pro" {
		t.Errorf("bundle = %q, want Pro", resp.Bundle)
	}

	history, err := svc.History(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Delta != 500 {
		t.Errorf("history = %+v, want one +500 entry", history)
	}

	mu.Lock()
	defer mu.Unlock()
	if purchases != 1 {
		t.Errorf("purchase.completed deliveries = %d, want 1", purchases)
	}
}

func TestCompletePurchaseUnknownBundle(t *testing.T) {
	svc, _, userID := newCreditFixture(t)

	_, err := svc.CompletePurchase(context.Background(), userID, &PurchaseRequest{
		Bundle:    "mega",
		Reference: "capture-1",
	})
	assertCode(t, err, CodeValidationError)

	balance, err := svc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("unknown bundle must not credit, balance = %d", balance)
	}
}

func TestBundlesCatalog(t *testing.T) {
	svc, _, _ := newCreditFixture(t)

	bundles := svc.Bundles()
	if len(bundles) != 3 {
		t.Fatalf("bundle count = %d, want 3", len(bundles))
	}

	var popular int
	for _, b := range bundles {
		if b.Popular {
			popular++
		}
		if b.Credits <= 0 || b.Price <= 0 {
			t.Errorf("bundle %s has non-positive credits or price", b.Name)
		}
	}
	if popular != 1 {
		t.Errorf("popular bundles = %d, want exactly 1", popular)
	}
}
