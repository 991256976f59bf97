package listing

import (
	"github.com/shopspring/decimal"

	"github.com/americavendas/marketplace/app/models"
)

// Owner is the authenticated identity acting on listings.
type Owner struct {
	ID    string
	Email string
	Name  string
	Phone string
}

// UploadFile is one image submitted with a listing.
type UploadFile struct {
	Filename string
	Data     []byte
}

// CreateInput holds the fields of a new listing.
type CreateInput struct {
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"required,max=5000"`
	Price       decimal.Decimal `json:"price" validate:"price"`
	Category    string          `json:"category" validate:"required,listing_category"`
	Street      string          `json:"street" validate:"max=200"`
	Number      string          `json:"number" validate:"max=20"`
	City        string          `json:"city" validate:"max=120"`
	State       string          `json:"state" validate:"max=60"`
	ZipCode     string          `json:"zip_code" validate:"max=20"`
	Location    string          `json:"location" validate:"max=200"`
	ContactInfo string          `json:"contact_info" validate:"max=200"`
}

// EditInput holds a partial update. Nil fields are left unchanged.
type EditInput struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price" validate:"omitnil,price"`
	Category    *string          `json:"category" validate:"omitempty,listing_category"`
	Street      *string          `json:"street" validate:"omitempty,max=200"`
	Number      *string          `json:"number" validate:"omitempty,max=20"`
	City        *string          `json:"city" validate:"omitempty,max=120"`
	State       *string          `json:"state" validate:"omitempty,max=60"`
	ZipCode     *string          `json:"zip_code" validate:"omitempty,max=20"`
	Location    *string          `json:"location" validate:"omitempty,max=200"`
	ContactInfo *string          `json:"contact_info" validate:"omitempty,max=200"`
}

// OwnerListing is a listing as shown on the owner's dashboard.
type OwnerListing struct {
	models.Listing
	DaysRemaining *int   `json:"days_remaining"`
	Badge         string `json:"badge"`
}

// SearchQuery selects public listings.
type SearchQuery struct {
	Category string           `json:"category" validate:"omitempty,listing_category"`
	MinPrice *decimal.Decimal `json:"min_price" validate:"omitempty,gte=0"`
	MaxPrice *decimal.Decimal `json:"max_price" validate:"omitempty,gte=0"`
	Location string           `json:"location" validate:"max=120"`
	Text     string           `json:"q" validate:"max=120"`
	Sort     string           `json:"sort" validate:"omitempty,oneof=newest oldest price_asc price_desc"`
	Limit    int              `json:"limit" validate:"gte=0,lte=100"`
	Offset   int              `json:"offset" validate:"gte=0"`
}

// SearchResult is one page of public listings.
type SearchResult struct {
	Items  []models.Listing `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// Account summarizes the caller's mirror row and free quota.
type Account struct {
	User                  *models.User `json:"user"`
	FreeListingsCap       int          `json:"free_listings_cap"`
	FreeListingsRemaining int          `json:"free_listings_remaining"`
}
