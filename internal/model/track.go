package model

import (
	"encoding/json"
	"time"
)

// Track is a generation request and its resulting asset record. Tracks are
// created in the queued status and are never deleted; administrative
// disable marks them error and clears the asset URLs.
type Track struct {
	ID          string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string          `json:"userId" gorm:"index;type:uuid;not null"`
	Title       string          `json:"title"`
	Brief       Brief           `json:"brief" gorm:"serializer:json;type:jsonb"`
	DurationSec int             `json:"durationSec" gorm:"not null"`
	Type        TrackType       `json:"type" gorm:"type:text;not null"`
	Provider    string          `json:"provider" gorm:"index;type:text;not null"`
	Status      TrackStatus     `json:"status" gorm:"index;type:text;not null;default:'queued'"`
	PreviewURL  string          `json:"previewUrl,omitempty"`
	FullURL     string          `json:"fullUrl,omitempty"`
	StemsZipURL string          `json:"stemsZipUrl,omitempty"`
	License     json.RawMessage `json:"license,omitempty" gorm:"type:jsonb"`
	PromptHash  string          `json:"promptHash,omitempty"`
	CostCredits int             `json:"costCredits" gorm:"not null"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// DisplayTitle falls back to a generated title when the brief had none.
func (t *Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Brief.Genre + " " + string(t.Type)
}
