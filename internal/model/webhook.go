package model

import "time"

// Webhook event types
type WebhookEvent string

const (
	EventTrackCreated      WebhookEvent = "track.created"
	EventTrackUpdated      WebhookEvent = "track.updated"
	EventTrackReady        WebhookEvent = "track.ready"
	EventPurchaseCompleted WebhookEvent = "purchase.completed"
)

// WebhookSubscription registers a subscriber URL for a set of events. Each
// delivery is signed with the subscription secret.
type WebhookSubscription struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid"`
	URL        string    `json:"url" gorm:"not null"`
	EventTypes []string  `json:"eventTypes" gorm:"serializer:json;type:jsonb"`
	Secret     string    `json:"-" gorm:"not null"`
	Active     bool      `json:"active" gorm:"index;not null;default:true"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Wants reports whether the subscription covers the given event.
func (s *WebhookSubscription) Wants(event WebhookEvent) bool {
	for _, e := range s.EventTypes {
		if e == string(event) {
			return true
		}
	}
	return false
}
