package model

import (
	"encoding/json"
	"time"
)

// CreditTransaction is an immutable ledger entry. A user's balance equals
// the running sum of their deltas since account creation.
type CreditTransaction struct {
	ID        string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string          `json:"userId" gorm:"index;type:uuid;not null"`
	Delta     int             `json:"delta" gorm:"not null"`
	Reason    string          `json:"reason" gorm:"not null"`
	Meta      json.RawMessage `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CreditBundle is a purchasable credit package. Price is in cents; payment
// capture happens outside this service, which only sees the completion
// event.
type CreditBundle struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Price   int    `json:"price"`
	Popular bool   `json:"popular"`
}
