package model

import (
	"encoding/json"
	"time"
)

// Job is one execution attempt of a track against a provider. An
// administrative retry reuses the row: state goes back to queued and the
// error text is cleared, without minting a new job identity.
type Job struct {
	ID             string          `json:"id" gorm:"primaryKey;type:uuid"`
	TrackID        string          `json:"trackId" gorm:"index;type:uuid;not null"`
	Provider       string          `json:"provider" gorm:"type:text;not null"`
	Payload        json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	ProviderTaskID string          `json:"providerTaskId,omitempty" gorm:"index"`
	State          JobState        `json:"state" gorm:"index;type:text;not null;default:'queued'"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Terminal reports whether the job has reached an absorbing state.
func (j *Job) Terminal() bool {
	return j.State == JobStateDone || j.State == JobStateFailed
}
