package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
)

// Loudly is the default instrumental provider.
type Loudly struct {
	client *apiClient
	apiKey string
}

type LoudlyConfig struct {
	BaseURL string
	APIKey  string
}

func NewLoudly(cfg LoudlyConfig, log *logrus.Logger) *Loudly {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.loudly.com/v1"
	}
	return &Loudly{
		client: newAPIClient("loudly", base, "Authorization", "Bearer "+cfg.APIKey, log),
		apiKey: cfg.APIKey,
	}
}

func (p *Loudly) Name() string { return "loudly" }

func (p *Loudly) configured() error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: loudly API key missing", ErrNotConfigured)
	}
	return nil
}

func loudlyPrompt(brief model.Brief) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s instrumental", brief.Genre, brief.Mood))
}

type loudlyGenerateRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Exact    bool   `json:"exact"`
	Seed     any    `json:"seed,omitempty"`
}

type loudlySubmitResponse struct {
	TaskID string `json:"taskId"`
}

func (p *Loudly) SubmitPreview(ctx context.Context, brief model.Brief) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}

	body := loudlyGenerateRequest{
		Prompt:   loudlyPrompt(brief),
		Duration: previewDuration(brief.DurationSec),
		Exact:    true,
	}

	var resp loudlySubmitResponse
	if err := p.client.post(ctx, "/generate", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (p *Loudly) SubmitFull(ctx context.Context, brief model.Brief, seedMeta Meta) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}

	body := loudlyGenerateRequest{
		Prompt:   loudlyPrompt(brief),
		Duration: brief.DurationSec,
		Exact:    true,
	}
	if seedMeta != nil {
		body.Seed = seedMeta["seed"]
	}

	var resp loudlySubmitResponse
	if err := p.client.post(ctx, "/generate", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (p *Loudly) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if err := p.configured(); err != nil {
		return PollResult{}, err
	}

	var raw map[string]any
	if err := p.client.get(ctx, "/tasks/"+taskID, &raw); err != nil {
		return PollResult{}, err
	}

	state, _ := raw["state"].(string)
	switch state {
	case "done":
		previewURL, _ := raw["previewUrl"].(string)
		return PollResult{State: StateDone, PreviewURL: previewURL, Meta: raw}, nil
	case "failed":
		return PollResult{State: StateFailed}, nil
	default:
		return PollResult{State: StateRunning}, nil
	}
}

func (p *Loudly) FetchAsset(ctx context.Context, taskID string) (Asset, error) {
	if err := p.configured(); err != nil {
		return Asset{}, err
	}

	var resp struct {
		FullURL string   `json:"fullUrl"`
		Stems   []string `json:"stems"`
	}
	if err := p.client.get(ctx, "/assets/"+taskID, &resp); err != nil {
		return Asset{}, err
	}
	return Asset{URL: resp.FullURL, Stems: resp.Stems}, nil
}
