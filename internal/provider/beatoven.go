package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
)

// Beatoven renders jingles.
type Beatoven struct {
	client *apiClient
	apiKey string
}

type BeatovenConfig struct {
	BaseURL string
	APIKey  string
}

func NewBeatoven(cfg BeatovenConfig, log *logrus.Logger) *Beatoven {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.beatoven.ai"
	}
	return &Beatoven{
		client: newAPIClient("beatoven", base, "X-API-Key", cfg.APIKey, log),
		apiKey: cfg.APIKey,
	}
}

func (p *Beatoven) Name() string { return "beatoven" }

func (p *Beatoven) configured() error {
	if p.apiKey == "" {
		return fmt.Errorf("%w: beatoven API key missing", ErrNotConfigured)
	}
	return nil
}

type beatovenTrackRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Stems    bool   `json:"stems"`
}

type beatovenSubmitResponse struct {
	TaskID string `json:"taskId"`
}

func (p *Beatoven) SubmitPreview(ctx context.Context, brief model.Brief) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}

	body := beatovenTrackRequest{
		Prompt:   strings.TrimSpace(fmt.Sprintf("%s %s jingle", brief.Genre, brief.Mood)),
		Duration: previewDuration(brief.DurationSec),
		Stems:    false,
	}

	var resp beatovenSubmitResponse
	if err := p.client.post(ctx, "/v1/tracks", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (p *Beatoven) SubmitFull(ctx context.Context, brief model.Brief, _ Meta) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}

	body := beatovenTrackRequest{
		Prompt:   strings.TrimSpace(fmt.Sprintf("%s %s instrumental", brief.Genre, brief.Mood)),
		Duration: brief.DurationSec,
		Stems:    true,
	}

	var resp beatovenSubmitResponse
	if err := p.client.post(ctx, "/v1/tracks", body, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (p *Beatoven) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if err := p.configured(); err != nil {
		return PollResult{}, err
	}

	var raw map[string]any
	if err := p.client.get(ctx, "/v1/tasks/"+taskID, &raw); err != nil {
		return PollResult{}, err
	}

	status, _ := raw["status"].(string)
	switch status {
	case "completed":
		previewURL, _ := raw["previewUrl"].(string)
		return PollResult{State: StateDone, PreviewURL: previewURL, Meta: raw}, nil
	case "failed":
		return PollResult{State: StateFailed}, nil
	default:
		return PollResult{State: StateRunning}, nil
	}
}

func (p *Beatoven) FetchAsset(ctx context.Context, taskID string) (Asset, error) {
	if err := p.configured(); err != nil {
		return Asset{}, err
	}

	var resp struct {
		DownloadURL string   `json:"downloadUrl"`
		StemsURLs   []string `json:"stemsUrls"`
	}
	if err := p.client.get(ctx, "/v1/assets/"+taskID, &resp); err != nil {
		return Asset{}, err
	}
	return Asset{URL: resp.DownloadURL, Stems: resp.StemsURLs}, nil
}
