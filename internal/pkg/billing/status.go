package billing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

// PaymentStatus is a checkout payment as shown to the user who paid it.
type PaymentStatus struct {
	SessionID     string          `json:"sessionId"`
	ListingID     string          `json:"listingId"`
	Plan          string          `json:"plan"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	ListingStatus string          `json:"listingStatus,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
}

// PaymentStatus looks up a checkout session of userID. The success page
// polls it until the webhook has moved the payment out of pending. Sessions
// of other users are reported as not found.
func (g *Gateway) PaymentStatus(ctx context.Context, sessionID, userID string) (*PaymentStatus, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.Validation("session id is required")
	}

	payment, err := g.repos.Payment.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, apperrors.NotFound("payment")
	}

	status := newPaymentStatus(payment)
	// completed payments outlive deleted listings
	listing, err := g.repos.Listing.GetByID(ctx, payment.ListingID)
	switch {
	case err == nil:
		status.ListingStatus = listing.Status
		status.ExpiresAt = listing.ExpiresAt
	case apperrors.KindOf(err) != apperrors.KindNotFound:
		return nil, err
	}
	return status, nil
}

// ListingPayments returns the checkout history of an owned listing, oldest
// first.
func (g *Gateway) ListingPayments(ctx context.Context, listingID, userID string) ([]PaymentStatus, error) {
	listing, err := g.repos.Listing.GetOwned(ctx, listingID, userID)
	if err != nil {
		return nil, err
	}
	payments, err := g.repos.Payment.ListByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	out := make([]PaymentStatus, 0, len(payments))
	for i := range payments {
		status := newPaymentStatus(&payments[i])
		status.ListingStatus = listing.Status
		out = append(out, *status)
	}
	return out, nil
}

func newPaymentStatus(p *models.ListingPayment) *PaymentStatus {
	return &PaymentStatus{
		SessionID:   p.StripeSessionID,
		ListingID:   p.ListingID,
		Plan:        p.Plan,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}
