package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeJobCounter struct {
	count int
	err   error
}

func (f *fakeJobCounter) CountActiveJobs(_ context.Context, _ string) (int, error) {
	return f.count, f.err
}

func testLimits() Limits {
	return Limits{
		MaxRequests:       3,
		Window:            50 * time.Millisecond,
		MaxPreviewsPerDay: 2,
		MaxConcurrentJobs: 3,
	}
}

func TestCheckRequestWindow(t *testing.T) {
	l := New(testLimits(), nil)

	for i := 0; i < 3; i++ {
		res := l.CheckRequest("user-1")
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 2 - i; res.Remaining != want {
			t.Errorf("remaining after request %d: got %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := l.CheckRequest("user-1")
	if res.Allowed {
		t.Error("fourth request in window should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining when denied: got %d, want 0", res.Remaining)
	}
	if res.ResetAt.Before(time.Now()) {
		t.Error("ResetAt should be in the future while window is open")
	}

	// Other identities get independent windows.
	if !l.CheckRequest("user-2").Allowed {
		t.Error("independent identity should not share the window")
	}
}

func TestCheckRequestLazyReset(t *testing.T) {
	l := New(testLimits(), nil)

	for i := 0; i < 4; i++ {
		l.CheckRequest("user-1")
	}

	time.Sleep(60 * time.Millisecond)

	res := l.CheckRequest("user-1")
	if !res.Allowed {
		t.Error("request after window expiry should start a fresh window")
	}
	if res.Remaining != 2 {
		t.Errorf("fresh window remaining: got %d, want 2", res.Remaining)
	}
}

func TestCheckPreviewQuota(t *testing.T) {
	l := New(testLimits(), nil)

	for i := 0; i < 2; i++ {
		res := l.CheckPreviewQuota("user-1")
		if !res.Allowed {
			t.Fatalf("preview %d should be allowed", i+1)
		}
	}

	res := l.CheckPreviewQuota("user-1")
	if res.Allowed {
		t.Error("preview over daily quota should be denied")
	}
	if res.ResetAt.Before(time.Now()) {
		t.Error("quota ResetAt should be the upcoming midnight")
	}

	// Simulate a stale entry from yesterday: the next check rolls it over.
	l.mu.Lock()
	l.previews["user-1"].date = "2000-01-01"
	l.mu.Unlock()

	if !l.CheckPreviewQuota("user-1").Allowed {
		t.Error("quota should reset on date rollover")
	}
}

func TestCheckConcurrentJobs(t *testing.T) {
	counter := &fakeJobCounter{count: 2}
	l := New(testLimits(), counter)

	ok, err := l.CheckConcurrentJobs(context.Background(), "user-1")
	if err != nil || !ok {
		t.Errorf("2 active jobs under cap of 3: got (%v, %v)", ok, err)
	}

	counter.count = 3
	ok, err = l.CheckConcurrentJobs(context.Background(), "user-1")
	if err != nil || ok {
		t.Errorf("3 active jobs at cap of 3: got (%v, %v), want denied", ok, err)
	}

	counter.err = errors.New("store down")
	if _, err := l.CheckConcurrentJobs(context.Background(), "user-1"); err == nil {
		t.Error("store errors must propagate, not silently allow")
	}
}

func TestSweep(t *testing.T) {
	l := New(testLimits(), nil)

	l.CheckRequest("user-1")
	l.CheckPreviewQuota("user-1")

	l.mu.Lock()
	l.previews["user-1"].date = "2000-01-01"
	l.mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.requests) != 0 {
		t.Errorf("expired request windows not swept: %d left", len(l.requests))
	}
	if len(l.previews) != 0 {
		t.Errorf("stale preview counters not swept: %d left", len(l.previews))
	}
}
