// Package license builds the metadata attached to every finished asset:
// content hash, commercial terms and a provenance block.
package license

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cravaudio/api/internal/model"
)

const Version = "1.0"

// promptFields is the canonical subset of a brief that identifies a
// generation. Field order is fixed so the hash is stable.
type promptFields struct {
	Genre     string          `json:"genre"`
	Mood      string          `json:"mood,omitempty"`
	Tempo     int             `json:"tempo,omitempty"`
	Lyrics    string          `json:"lyrics,omitempty"`
	Structure []model.Section `json:"structure,omitempty"`
	Vocals    model.Vocals    `json:"vocals"`
	Language  model.Language  `json:"language,omitempty"`
}

// PromptHash returns the hex SHA-256 of the brief's generation-relevant
// fields.
func PromptHash(brief model.Brief) string {
	raw, _ := json.Marshal(promptFields{
		Genre:     brief.Genre,
		Mood:      brief.Mood,
		Tempo:     brief.Tempo,
		Lyrics:    brief.Lyrics,
		Structure: brief.Structure,
		Vocals:    brief.Vocals,
		Language:  brief.Language,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

type BriefSummary struct {
	Genre    string         `json:"genre"`
	Mood     string         `json:"mood,omitempty"`
	Duration int            `json:"duration"`
	Vocals   model.Vocals   `json:"vocals"`
	Language model.Language `json:"language,omitempty"`
}

type Terms struct {
	Type         string `json:"type"`
	Terms        string `json:"terms"`
	Restrictions string `json:"restrictions"`
	Attribution  string `json:"attribution"`
}

type Provenance struct {
	Model       string `json:"model"`
	TaskID      string `json:"taskId"`
	ContentHash string `json:"contentHash"`
	Watermark   string `json:"watermark"`
}

// Document is the license metadata emitted per completed asset.
type Document struct {
	Version        string            `json:"version"`
	TrackID        string            `json:"trackId"`
	Provider       string            `json:"provider"`
	ProviderTaskID string            `json:"providerTaskId"`
	PromptHash     string            `json:"promptHash"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	Brief          BriefSummary      `json:"brief"`
	License        Terms             `json:"license"`
	Provenance     Provenance        `json:"provenance"`
	Watermark      WatermarkMetadata `json:"watermark"`
}

// commercialTerms is the fixed terms block granted with every purchase.
var commercialTerms = Terms{
	Type:         "commercial",
	Terms:        "Full commercial rights granted to purchaser",
	Restrictions: "Cannot resell as music library content or AI training data",
	Attribution:  "Attribution not required but appreciated",
}

// Generate builds the license document for a finished track. Preview
// assets carry an audible watermark, full assets do not.
func Generate(trackID string, brief model.Brief, providerName, providerTaskID, promptHash string, fidelity model.Fidelity) Document {
	wm := GenerateWatermarkMetadata(string(fidelity))
	return Document{
		Version:        Version,
		TrackID:        trackID,
		Provider:       providerName,
		ProviderTaskID: providerTaskID,
		PromptHash:     promptHash,
		GeneratedAt:    time.Now().UTC(),
		Brief: BriefSummary{
			Genre:    brief.Genre,
			Mood:     brief.Mood,
			Duration: brief.DurationSec,
			Vocals:   brief.Vocals,
			Language: brief.Language,
		},
		License: commercialTerms,
		Provenance: Provenance{
			Model:       providerName,
			TaskID:      providerTaskID,
			ContentHash: promptHash,
			Watermark:   wm.Method,
		},
		Watermark: wm,
	}
}
