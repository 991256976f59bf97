package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

// EventRepository persists the webhook delivery ledger.
type EventRepository interface {
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string, at time.Time) error
}

type gormEventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a webhook ledger backed by GORM.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, apperrors.Persistence(tx.Error, "could not record webhook event")
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, apperrors.Persistence(err, "could not load webhook event")
	}
	return created, &stored, nil
}

func (r *gormEventRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string, at time.Time) error {
	updates := map[string]interface{}{
		"processed_at":     &at,
		"processing_error": processingError,
	}
	err := r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return apperrors.Persistence(err, "could not mark webhook event")
	}
	return nil
}
