package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/americavendas/marketplace/app/models"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a payment row
func (r *paymentRepository) Create(ctx context.Context, payment *models.ListingPayment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error, "payment")
}

// GetBySessionID retrieves the payment of a checkout session
func (r *paymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.ListingPayment, error) {
	var payment models.ListingPayment
	if err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, translate(err, "payment")
	}
	return &payment, nil
}

// GetBySessionIDForUpdate locks the payment row for the rest of the transaction
func (r *paymentRepository) GetBySessionIDForUpdate(ctx context.Context, sessionID string) (*models.ListingPayment, error) {
	var payment models.ListingPayment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_session_id = ?", sessionID).First(&payment).Error
	if err != nil {
		return nil, translate(err, "payment")
	}
	return &payment, nil
}

// ListByListing returns all payments of a listing, oldest first
func (r *paymentRepository) ListByListing(ctx context.Context, listingID string) ([]models.ListingPayment, error) {
	var payments []models.ListingPayment
	err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).
		Order("created_at ASC").Find(&payments).Error
	return payments, translate(err, "payment")
}

// Save writes every column of an existing payment row
func (r *paymentRepository) Save(ctx context.Context, payment *models.ListingPayment) error {
	return translate(r.db.WithContext(ctx).Save(payment).Error, "payment")
}

// DeletePendingByListing removes unfinished payments of a listing. Completed
// payments are kept as billing history.
func (r *paymentRepository) DeletePendingByListing(ctx context.Context, listingID string) error {
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status <> ?", listingID, models.PaymentStatusCompleted).
		Delete(&models.ListingPayment{}).Error
	return translate(err, "payment")
}
