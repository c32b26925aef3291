// Package ratelimit holds the in-process request window, daily preview
// quota and concurrent-job cap. All three are advisory gates checked
// before a job is created; none cancel in-flight work.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limits configures the three counters.
type Limits struct {
	MaxRequests       int           // per identity per window
	Window            time.Duration // request window length
	MaxPreviewsPerDay int
	MaxConcurrentJobs int
}

// DefaultLimits matches production policy.
var DefaultLimits = Limits{
	MaxRequests:       60,
	Window:            60 * time.Second,
	MaxPreviewsPerDay: 30,
	MaxConcurrentJobs: 3,
}

// JobCounter reports the number of non-terminal jobs a user currently has.
// The count itself lives in the record store.
type JobCounter interface {
	CountActiveJobs(ctx context.Context, userID string) (int, error)
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

type quotaEntry struct {
	count int
	date  string
}

// Limiter is safe for concurrent use. Windows reset lazily on the first
// check after expiry; Sweep removes entries nothing will check again.
type Limiter struct {
	limits Limits
	jobs   JobCounter

	mu       sync.Mutex
	requests map[string]*windowEntry
	previews map[string]*quotaEntry

	stop chan struct{}
	once sync.Once
}

func New(limits Limits, jobs JobCounter) *Limiter {
	return &Limiter{
		limits:   limits,
		jobs:     jobs,
		requests: make(map[string]*windowEntry),
		previews: make(map[string]*quotaEntry),
		stop:     make(chan struct{}),
	}
}

// RequestResult is returned by CheckRequest so callers can emit
// X-RateLimit headers and a Retry-After hint.
type RequestResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// CheckRequest counts a request against the identity's fixed window,
// incrementing only when allowed.
func (l *Limiter) CheckRequest(identifier string) RequestResult {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.requests[identifier]
	if entry == nil || entry.resetAt.Before(now) {
		entry = &windowEntry{resetAt: now.Add(l.limits.Window)}
		l.requests[identifier] = entry
	}

	allowed := entry.count < l.limits.MaxRequests
	if allowed {
		entry.count++
	}

	remaining := l.limits.MaxRequests - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return RequestResult{Allowed: allowed, Remaining: remaining, ResetAt: entry.resetAt}
}

// QuotaResult is returned by CheckPreviewQuota.
type QuotaResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CheckPreviewQuota counts a free preview against the user's daily quota,
// keyed by the wall-clock date. The counter rolls over at midnight.
func (l *Limiter) CheckPreviewQuota(userID string) QuotaResult {
	now := time.Now()
	today := dateKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.previews[userID]
	if entry == nil || entry.date != today {
		entry = &quotaEntry{date: today}
		l.previews[userID] = entry
	}

	allowed := entry.count < l.limits.MaxPreviewsPerDay
	if allowed {
		entry.count++
	}

	remaining := l.limits.MaxPreviewsPerDay - entry.count
	if remaining < 0 {
		remaining = 0
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	return QuotaResult{Allowed: allowed, Remaining: remaining, ResetAt: midnight}
}

// CheckConcurrentJobs enforces the cap on simultaneous non-terminal jobs.
func (l *Limiter) CheckConcurrentJobs(ctx context.Context, userID string) (bool, error) {
	count, err := l.jobs.CountActiveJobs(ctx, userID)
	if err != nil {
		return false, err
	}
	return count < l.limits.MaxConcurrentJobs, nil
}

// Sweep drops expired request windows and preview counters from past days.
func (l *Limiter) Sweep() {
	now := time.Now()
	today := dateKey(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.requests {
		if entry.resetAt.Before(now) {
			delete(l.requests, key)
		}
	}
	for key, entry := range l.previews {
		if entry.date != today {
			delete(l.previews, key)
		}
	}
}

// Start runs a periodic sweep until Stop is called.
func (l *Limiter) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
