package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ListingStatusDraft          = "draft"
	ListingStatusPendingPayment = "pending_payment"
	ListingStatusPublished      = "published"
	ListingStatusExpired        = "expired"
)

// Categories accepted on create/edit. Both the Portuguese and the English
// sets are in use by clients.
var Categories = []string{
	"casa", "carro", "terreno", "comercio",
	"house", "car", "land", "commerce",
	"real-estate", "vehicle", "electronics", "service", "other",
}

// IsValidCategory reports whether c is one of Categories.
func IsValidCategory(c string) bool {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Listing struct {
	ID               string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string                      `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User             *User                       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title            string                      `gorm:"type:varchar(200);not null" json:"title"`
	Description      string                      `gorm:"type:text;not null" json:"description"`
	Price            decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"price"`
	Category         string                      `gorm:"type:varchar(40);not null;index" json:"category"`
	Status           string                      `gorm:"type:varchar(20);not null;default:'draft';index:idx_listings_status_expires,priority:1" json:"status"`
	IsPaid           bool                        `gorm:"not null;default:false" json:"is_paid"`
	PlanType         string                      `gorm:"type:varchar(20)" json:"plan_type,omitempty"`
	Images           datatypes.JSONSlice[string] `json:"images"`
	Street           string                      `gorm:"type:varchar(200)" json:"street,omitempty"`
	Number           string                      `gorm:"type:varchar(20)" json:"number,omitempty"`
	City             string                      `gorm:"type:varchar(120);index" json:"city,omitempty"`
	State            string                      `gorm:"type:varchar(60)" json:"state,omitempty"`
	ZipCode          string                      `gorm:"type:varchar(20)" json:"zip_code,omitempty"`
	Location         string                      `gorm:"type:varchar(200)" json:"location,omitempty"`
	ContactInfo      string                      `gorm:"type:varchar(200)" json:"contact_info,omitempty"`
	PaymentSessionID string                      `gorm:"type:varchar(255);index" json:"-"`
	ViewCount        int64                       `gorm:"not null;default:0" json:"view_count"`
	ListingImages    []ListingImage              `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt        time.Time                   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
	ExpiresAt        *time.Time                  `gorm:"type:timestamp;default:null;index:idx_listings_status_expires,priority:2" json:"expires_at"`
	PublishedAt      *time.Time                  `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = ListingStatusDraft
	}
	if l.Images == nil {
		l.Images = datatypes.JSONSlice[string]{}
	}
	return nil
}

// IsPubliclyVisible is the single visibility rule for search and detail views.
func (l *Listing) IsPubliclyVisible(now time.Time) bool {
	return l.Status == ListingStatusPublished && l.ExpiresAt != nil && l.ExpiresAt.After(now)
}

// EffectiveStatus returns the stored status unless the expiry has passed.
func (l *Listing) EffectiveStatus(now time.Time) string {
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return ListingStatusExpired
	}
	return l.Status
}

// DaysRemaining rounds up to whole days. Listings without expiry report -1.
func (l *Listing) DaysRemaining(now time.Time) int {
	if l.ExpiresAt == nil {
		return -1
	}
	left := l.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// Publish applies a plan to the listing in memory.
func (l *Listing) Publish(plan string, paid bool, now time.Time, duration time.Duration) {
	expires := now.Add(duration)
	published := now
	l.Status = ListingStatusPublished
	l.IsPaid = paid
	l.PlanType = plan
	l.ExpiresAt = &expires
	l.PublishedAt = &published
}

// ImageKeys returns the storage paths of the attached image rows.
func (l *Listing) ImageKeys() []string {
	keys := make([]string, 0, len(l.ListingImages)*2)
	for _, img := range l.ListingImages {
		keys = append(keys, img.StorageKeys()...)
	}
	return keys
}
