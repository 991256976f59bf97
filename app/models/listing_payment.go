package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusExpired   = "expired"
	PaymentStatusFailed    = "failed"
)

// ListingPayment tracks one checkout session for a listing. Only the
// webhook handler moves it out of pending.
type ListingPayment struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID       string          `gorm:"type:varchar(36);not null;index" json:"listing_id"`
	UserID          string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	StripeSessionID string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"stripe_session_id"`
	Plan            string          `gorm:"type:varchar(20);not null" json:"plan"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'brl'" json:"currency"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	LastEventID     string          `gorm:"type:varchar(255)" json:"-"`
	LastEventAt     *time.Time      `gorm:"type:timestamp;default:null" json:"-"`
	CompletedAt     *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ListingPayment) TableName() string {
	return "listing_payments"
}

func (p *ListingPayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the payment can no longer change state.
func (p *ListingPayment) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted
}

// IsStale reports whether an event at eventAt is older than the last one applied.
func (p *ListingPayment) IsStale(eventAt time.Time) bool {
	return p.LastEventAt != nil && eventAt.Before(*p.LastEventAt)
}
