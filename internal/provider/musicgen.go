package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
)

// MusicGen is the local generation engine used in standalone deployments.
type MusicGen struct {
	client     *apiClient
	standalone bool
}

type MusicGenConfig struct {
	BaseURL    string
	Standalone bool
}

func NewMusicGen(cfg MusicGenConfig, log *logrus.Logger) *MusicGen {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:8085/api"
	}
	return &MusicGen{
		client:     newAPIClient("musicgen", base, "Content-Type", "application/json", log),
		standalone: cfg.Standalone,
	}
}

func (p *MusicGen) Name() string { return "musicgen" }

func (p *MusicGen) available() error {
	if !p.standalone {
		return fmt.Errorf("%w: musicgen requires standalone mode", ErrNotEnabled)
	}
	return nil
}

// musicgenPrompt folds the brief into a descriptive prompt: genre, mood,
// tempo and the named structure sections.
func musicgenPrompt(brief model.Brief) string {
	parts := []string{brief.Genre}

	if brief.Mood != "" {
		parts = append(parts, brief.Mood)
	}
	if brief.Tempo > 0 {
		parts = append(parts, fmt.Sprintf("%d BPM", brief.Tempo))
	}
	parts = append(parts, "instrumental")

	if len(brief.Structure) > 0 {
		names := make([]string, 0, len(brief.Structure))
		for _, section := range brief.Structure {
			names = append(names, section.Name)
		}
		parts = append(parts, "with structure: "+strings.Join(names, ", "))
	}

	return strings.Join(parts, ", ")
}

type musicgenGenerateRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Mode     string `json:"mode"`
	Seed     any    `json:"seed,omitempty"`
}

type musicgenSubmitResponse struct {
	JobID string `json:"jobId"`
}

func (p *MusicGen) SubmitPreview(ctx context.Context, brief model.Brief) (string, error) {
	if err := p.available(); err != nil {
		return "", err
	}

	body := musicgenGenerateRequest{
		Prompt:   musicgenPrompt(brief),
		Duration: previewDuration(brief.DurationSec),
		Mode:     "preview",
	}

	var resp musicgenSubmitResponse
	if err := p.client.post(ctx, "/musicgen/generate", body, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (p *MusicGen) SubmitFull(ctx context.Context, brief model.Brief, seedMeta Meta) (string, error) {
	if err := p.available(); err != nil {
		return "", err
	}

	body := musicgenGenerateRequest{
		Prompt:   musicgenPrompt(brief),
		Duration: brief.DurationSec,
		Mode:     "full",
	}
	if seedMeta != nil {
		body.Seed = seedMeta["seed"]
	}

	var resp musicgenSubmitResponse
	if err := p.client.post(ctx, "/musicgen/generate", body, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (p *MusicGen) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if err := p.available(); err != nil {
		return PollResult{}, err
	}

	var raw map[string]any
	if err := p.client.get(ctx, "/musicgen/status/"+taskID, &raw); err != nil {
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

func (p *MusicGen) FetchAsset(ctx context.Context, taskID string) (Asset, error) {
	if err := p.available(); err != nil {
		return Asset{}, err
	}

	var resp struct {
		DownloadURL string   `json:"downloadUrl"`
		StemsURLs   []string `json:"stemsUrls"`
	}
	if err := p.client.get(ctx, "/musicgen/asset/"+taskID, &resp); err != nil {
		return Asset{}, err
	}
	return Asset{URL: resp.DownloadURL, Stems: resp.StemsURLs}, nil
}
