package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by its identity-provider id
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

// EnsureExists creates the local mirror row when it is missing. New rows start
// their free quota counter at the number of free listings already published,
// so accounts that predate the counter keep their history.
func (r *userRepository) EnsureExists(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := r.GetByID(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	used, err := NewListingRepository(r.db).CountFreePublished(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.FreeListingsUsed = int(used)

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return r.GetByID(ctx, user.ID)
}

// ConsumeFreeListing increments the free quota counter if it is below cap.
// It reports false when the cap is already reached.
func (r *userRepository) ConsumeFreeListing(ctx context.Context, userID string, cap int) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND free_listings_used < ?", userID, cap).
		UpdateColumn("free_listings_used", gorm.Expr("free_listings_used + ?", 1))
	if tx.Error != nil {
		return false, translate(tx.Error, "user")
	}
	return tx.RowsAffected == 1, nil
}
