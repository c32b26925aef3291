package provider

import (
	"context"
	"fmt"

	"github.com/cravaudio/api/internal/model"
)

// Eleven is the vocal-song provider. The integration is gated behind a
// feature flag and fails fast until API access is granted; it never
// attempts a network call.
type Eleven struct {
	enabled bool
}

func NewEleven(enabled bool) *Eleven {
	return &Eleven{enabled: enabled}
}

func (p *Eleven) Name() string { return "eleven" }

func (p *Eleven) gate() error {
	if !p.enabled {
		return fmt.Errorf("%w: eleven music API access not enabled", ErrNotEnabled)
	}
	// TODO: implement once Eleven Music API access is granted.
	return fmt.Errorf("%w: eleven music integration pending", ErrNotImplemented)
}

func (p *Eleven) SubmitPreview(_ context.Context, _ model.Brief) (string, error) {
	return "", p.gate()
}

func (p *Eleven) SubmitFull(_ context.Context, _ model.Brief, _ Meta) (string, error) {
	return "", p.gate()
}

func (p *Eleven) Poll(_ context.Context, _ string) (PollResult, error) {
	return PollResult{}, p.gate()
}

func (p *Eleven) FetchAsset(_ context.Context, _ string) (Asset, error) {
	return Asset{}, p.gate()
}
