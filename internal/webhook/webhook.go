// Package webhook delivers signed event notifications to subscriber URLs.
// Delivery is at-most-once and best-effort: failures are logged, never
// retried.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/store"
)

const (
	headerSignature = "X-CRAV-Signature"
	headerEvent     = "X-CRAV-Event"
)

// Payload is the JSON body delivered to subscribers.
type Payload struct {
	Event     model.WebhookEvent `json:"event"`
	Timestamp time.Time          `json:"timestamp"`
	Data      any                `json:"data"`
}

type Dispatcher struct {
	store store.Store
	http  *http.Client
	log   *logrus.Logger
}

func NewDispatcher(st store.Store, timeout time.Duration, log *logrus.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		store: st,
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}
}

// Sign computes the hex HMAC-SHA256 of the payload bytes under the secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received "sha256=<hex>" signature header in
// constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := "sha256=" + Sign(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Emit delivers the event to every active subscription covering it. Each
// delivery is independent; one failing subscriber does not affect the
// rest.
func (d *Dispatcher) Emit(ctx context.Context, event model.WebhookEvent, data any) {
	subs, err := d.store.ListActiveSubscriptions(ctx)
	if err != nil {
		d.log.WithError(err).Error("webhook: listing subscriptions failed")
		return
	}

	payload := Payload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.WithError(err).Error("webhook: payload marshal failed")
		return
	}

	for _, sub := range subs {
		if !sub.Wants(event) {
			continue
		}
		d.deliver(ctx, sub, event, body)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sub *model.WebhookSubscription, event model.WebhookEvent, body []byte) {
	log := d.log.WithFields(logrus.Fields{
		"event":           event,
		"subscription_id": sub.ID,
		"url":             sub.URL,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("webhook delivery skipped: bad request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, "sha256="+Sign(body, sub.Secret))
	req.Header.Set(headerEvent, string(event))

	resp, err := d.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("webhook delivery failed")
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Warn("webhook delivery rejected")
		return
	}
	log.Debug("webhook delivered")
}

// Subscribe registers a new subscription.
func (d *Dispatcher) Subscribe(ctx context.Context, url string, eventTypes []string, secret string) (*model.WebhookSubscription, error) {
	sub := &model.WebhookSubscription{
		ID:         uuid.New().String(),
		URL:        url,
		EventTypes: eventTypes,
		Secret:     secret,
		Active:     true,
		CreatedAt:  time.Now(),
	}
	if err := d.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe deactivates a subscription; it is kept for audit.
func (d *Dispatcher) Unsubscribe(ctx context.Context, id string) error {
	return d.store.DeactivateSubscription(ctx, id)
}

// List returns the active subscriptions.
func (d *Dispatcher) List(ctx context.Context) ([]*model.WebhookSubscription, error) {
	return d.store.ListActiveSubscriptions(ctx)
}
