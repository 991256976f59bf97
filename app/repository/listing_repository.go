package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/americavendas/marketplace/app/models"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// listingRepository implements the ListingRepository interface
type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository instance
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create inserts a new listing. Associations are never written through it.
func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(listing).Error
	return translate(err, "listing")
}

// GetByID retrieves a listing with its image rows
func (r *listingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("ListingImages", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, translate(err, "listing")
	}
	return &listing, nil
}

// GetOwned retrieves a listing only if it belongs to ownerID
func (r *listingRepository) GetOwned(ctx context.Context, id, ownerID string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("ListingImages", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND user_id = ?", id, ownerID).First(&listing).Error
	if err != nil {
		return nil, translate(err, "listing")
	}
	return &listing, nil
}

// GetForUpdate locks the listing row for the rest of the transaction
func (r *listingRepository) GetForUpdate(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, translate(err, "listing")
	}
	return &listing, nil
}

// GetOwnedForUpdate locks the listing row if it belongs to ownerID
func (r *listingRepository) GetOwnedForUpdate(ctx context.Context, id, ownerID string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, ownerID).First(&listing).Error
	if err != nil {
		return nil, translate(err, "listing")
	}
	return &listing, nil
}

// UpdateFields applies a partial update to one listing
func (r *listingRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	tx := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return translate(tx.Error, "listing")
	}
	if tx.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "listing")
	}
	return nil
}

// Delete hard-deletes a listing row
func (r *listingRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Listing{}).Error
	return translate(err, "listing")
}

// ListByOwner returns all listings of a user, newest first
func (r *listingRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").Find(&listings).Error
	return listings, translate(err, "listing")
}

// Search returns one page of publicly visible listings plus the total match count
func (r *listingRepository) Search(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("status = ? AND expires_at > ?", models.ListingStatusPublished, filter.Now)

	if c := strings.ToLower(strings.TrimSpace(filter.Category)); c != "" {
		query = query.Where("category = ?", c)
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		pattern := likePattern(loc)
		query = query.Where(
			"(LOWER(city) LIKE ? ESCAPE '!' OR LOWER(state) LIKE ? ESCAPE '!' OR LOWER(location) LIKE ? ESCAPE '!')",
			pattern, pattern, pattern,
		)
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		pattern := likePattern(text)
		query = query.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "listing")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var listings []models.Listing
	err := query.Order(sortClause(filter.Sort)).Order("id ASC").
		Limit(limit).Offset(offset).Find(&listings).Error
	if err != nil {
		return nil, 0, translate(err, "listing")
	}
	return listings, total, nil
}

// CountFreePublished counts listings the user published without paying,
// including the ones that have expired since.
func (r *listingRepository) CountFreePublished(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("user_id = ? AND is_paid = ? AND status IN ?", userID, false,
			[]string{models.ListingStatusPublished, models.ListingStatusExpired}).
		Count(&count).Error
	return count, translate(err, "listing")
}

// ExpireDue moves published listings past their expiry to expired and
// returns the affected ids.
func (r *listingRepository) ExpireDue(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Listing{}).
			Where("status = ? AND expires_at <= ?", models.ListingStatusPublished, now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.Listing{}).
			Where("id IN ? AND status = ?", ids, models.ListingStatusPublished).
			Update("status", models.ListingStatusExpired).Error
	})
	if err != nil {
		return nil, translate(err, "listing")
	}
	return ids, nil
}

// AddViews adds flushed view counts to a listing
func (r *listingRepository) AddViews(ctx context.Context, id string, delta int64) error {
	err := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", delta)).Error
	return translate(err, "listing")
}

func sortClause(sort string) string {
	switch sort {
	case SortOldest:
		return "created_at ASC"
	case SortPriceAsc:
		return "price ASC"
	case SortPriceDesc:
		return "price DESC"
	default:
		return "created_at DESC"
	}
}

func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
