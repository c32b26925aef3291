// Package provider wraps the external music-generation services behind a
// uniform capability interface. Adding a provider is a pure addition: one
// implementation plus a registry entry.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cravaudio/api/internal/model"
)

var (
	// ErrNotConfigured means the credential for a provider is missing.
	// Submission fails before any network call and is refundable.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrNotEnabled means the integration exists but is feature-gated off.
	ErrNotEnabled = errors.New("provider integration not enabled")
	// ErrNotImplemented marks an integration still pending API access.
	ErrNotImplemented = errors.New("provider integration not implemented")
)

// Unavailable reports whether the error is a configuration-class failure,
// meaning no real generation attempt occurred and the debit must be
// refunded.
func Unavailable(err error) bool {
	return errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrNotEnabled) ||
		errors.Is(err, ErrNotImplemented)
}

// PollState is the normalized remote task state.
type PollState string

const (
	StateRunning PollState = "running"
	StateDone    PollState = "done"
	StateFailed  PollState = "failed"
)

// PollResult is the normalized answer to a status poll. Meta carries the
// raw provider response for seeding full renders.
type PollResult struct {
	State      PollState
	PreviewURL string
	Meta       map[string]any
}

// Asset is a finished deliverable.
type Asset struct {
	URL   string
	Stems []string
}

// Meta is opaque provider metadata passed back on full submissions.
type Meta map[string]any

// Provider is the uniform capability set over the generation services.
// Poll must be idempotent and must classify unknown remote states as
// running, never as done.
type Provider interface {
	Name() string
	SubmitPreview(ctx context.Context, brief model.Brief) (taskID string, err error)
	Poll(ctx context.Context, taskID string) (PollResult, error)
	SubmitFull(ctx context.Context, brief model.Brief, seedMeta Meta) (taskID string, err error)
	FetchAsset(ctx context.Context, taskID string) (Asset, error)
}

// Registry resolves provider names chosen by the pricing decision table.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, name)
	}
	return p, nil
}

// previewDuration clamps a brief's duration for preview submissions.
func previewDuration(durationSec int) int {
	if durationSec > 30 {
		return 30
	}
	return durationSec
}
