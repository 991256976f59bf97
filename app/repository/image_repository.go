package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/americavendas/marketplace/app/models"
)

// imageRepository implements the ImageRepository interface
type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository creates a new image repository instance
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Create creates a new image row
func (r *imageRepository) Create(ctx context.Context, image *models.ListingImage) error {
	return translate(r.db.WithContext(ctx).Create(image).Error, "image")
}

// ListByListing returns the image rows of a listing in display order
func (r *imageRepository) ListByListing(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	var images []models.ListingImage
	err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).
		Order("position ASC").Find(&images).Error
	return images, translate(err, "image")
}

// NextPosition returns the position for an image appended to the listing
func (r *imageRepository) NextPosition(ctx context.Context, listingID string) (int, error) {
	var last int
	row := r.db.WithContext(ctx).Model(&models.ListingImage{}).
		Where("listing_id = ?", listingID).
		Select("COALESCE(MAX(position), -1)").Row()
	if err := row.Scan(&last); err != nil {
		return 0, translate(err, "image")
	}
	return last + 1, nil
}

// DeleteByIDs removes the given image rows
func (r *imageRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.ListingImage{}).Error
	return translate(err, "image")
}

// DeleteByListing removes every image row of a listing
func (r *imageRepository) DeleteByListing(ctx context.Context, listingID string) error {
	err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&models.ListingImage{}).Error
	return translate(err, "image")
}
