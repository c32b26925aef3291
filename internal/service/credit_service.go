package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cravaudio/api/internal/ledger"
	"github.com/cravaudio/api/internal/model"
	"github.com/cravaudio/api/internal/pricing"
	"github.com/cravaudio/api/internal/webhook"
)

// CreditService exposes balances, ledger history and top-up completion.
// Payment capture happens outside this service; it only records the
// completed purchase.
type CreditService struct {
	ledger *ledger.Service
	events *webhook.Dispatcher
	log    *logrus.Logger
}

func NewCreditService(lg *ledger.Service, events *webhook.Dispatcher, log *logrus.Logger) *CreditService {
	return &CreditService{ledger: lg, events: events, log: log}
}

func (s *CreditService) Balance(ctx context.Context, userID string) (int, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *CreditService) History(ctx context.Context, userID string, limit int) ([]*model.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.ledger.History(ctx, userID, limit)
}

func (s *CreditService) Bundles() []model.CreditBundle {
	return pricing.Bundles
}

// PurchaseRequest is the top-up completion event. Reference is the
// external payment capture id.
type PurchaseRequest struct {
	Bundle    string `json:"bundle" validate:"required"`
	Reference string `json:"reference" validate:"required"`
}

type PurchaseResponse struct {
	Bundle  string `json:"bundle"`
	Credits int    `json:"credits"`
	Balance int    `json:"balance"`
}

// CompletePurchase credits the bundle amount and emits the
// purchase.completed event.
func (s *CreditService) CompletePurchase(ctx context.Context, userID string, req *PurchaseRequest) (*PurchaseResponse, error) {
	var bundle *model.CreditBundle
	for i := range pricing.Bundles {
		if strings.EqualFold(pricing.Bundles[i].Name, req.Bundle) {
			bundle = &pricing.Bundles[i]
			break
		}
	}
	if bundle == nil {
		return nil, newError(CodeValidationError, fmt.Sprintf("unknown credit bundle %q", req.Bundle), nil)
	}

	err := s.ledger.Add(ctx, userID, bundle.Credits, "purchase: "+bundle.Name, map[string]any{
		"bundle":    bundle.Name,
		"price":     bundle.Price,
		"reference": req.Reference,
	})
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventPurchaseCompleted, map[string]any{
		"userId":    userID,
		"bundle":    bundle.Name,
		"credits":   bundle.Credits,
		"reference": req.Reference,
	})

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"bundle":  bundle.Name,
		"credits": bundle.Credits,
	}).Info("purchase completed")

	return &PurchaseResponse{Bundle: bundle.Name, Credits: bundle.Credits, Balance: balance}, nil
}
