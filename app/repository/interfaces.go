package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/americavendas/marketplace/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	EnsureExists(ctx context.Context, user *models.User) (*models.User, error)
	ConsumeFreeListing(ctx context.Context, userID string, cap int) (bool, error)
}

// ListingRepository defines the interface for listing-related database operations
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	GetOwned(ctx context.Context, id, ownerID string) (*models.Listing, error)
	GetForUpdate(ctx context.Context, id string) (*models.Listing, error)
	GetOwnedForUpdate(ctx context.Context, id, ownerID string) (*models.Listing, error)
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
	Search(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error)
	CountFreePublished(ctx context.Context, userID string) (int64, error)
	ExpireDue(ctx context.Context, now time.Time) ([]string, error)
	AddViews(ctx context.Context, id string, delta int64) error
}

// ImageRepository defines the interface for listing image rows
type ImageRepository interface {
	Create(ctx context.Context, image *models.ListingImage) error
	ListByListing(ctx context.Context, listingID string) ([]models.ListingImage, error)
	NextPosition(ctx context.Context, listingID string) (int, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByListing(ctx context.Context, listingID string) error
}

// PaymentRepository defines the interface for checkout payment rows
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.ListingPayment) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.ListingPayment, error)
	GetBySessionIDForUpdate(ctx context.Context, sessionID string) (*models.ListingPayment, error)
	ListByListing(ctx context.Context, listingID string) ([]models.ListingPayment, error)
	Save(ctx context.Context, payment *models.ListingPayment) error
	DeletePendingByListing(ctx context.Context, listingID string) error
}

// Sort orders accepted by ListingRepository.Search.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ListingFilter selects publicly visible listings.
type ListingFilter struct {
	Now      time.Time
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Location string
	Text     string
	Sort     string
	Limit    int
	Offset   int
}

// Repositories struct holds all repository instances
type Repositories struct {
	db      *gorm.DB
	User    UserRepository
	Listing ListingRepository
	Image   ImageRepository
	Payment PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:      db,
		User:    NewUserRepository(db),
		Listing: NewListingRepository(db),
		Image:   NewImageRepository(db),
		Payment: NewPaymentRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database transaction.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB returns the connection the repositories are bound to.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
