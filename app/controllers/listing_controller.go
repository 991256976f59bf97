package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/listing"
	"github.com/americavendas/marketplace/internal/pkg/upload"
	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

// ListingService is the part of the listing lifecycle the HTTP layer uses.
type ListingService interface {
	Create(ctx context.Context, owner listing.Owner, in listing.CreateInput, files []listing.UploadFile) (*models.Listing, error)
	Edit(ctx context.Context, listingID, ownerID string, in listing.EditInput) (*models.Listing, error)
	AddImages(ctx context.Context, listingID, ownerID string, files []listing.UploadFile) (*models.Listing, error)
	ReplaceImages(ctx context.Context, listingID, ownerID string, files []listing.UploadFile) (*models.Listing, error)
	Delete(ctx context.Context, listingID, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]listing.OwnerListing, error)
	GetPublic(ctx context.Context, id string) (*models.Listing, error)
	Search(ctx context.Context, q listing.SearchQuery) (*listing.SearchResult, error)
	Account(ctx context.Context, owner listing.Owner) (*listing.Account, error)
}

// ListingController handles listing HTTP requests
type ListingController struct {
	listings ListingService
}

// NewListingController creates a new listing controller
func NewListingController(listings ListingService) *ListingController {
	return &ListingController{listings: listings}
}

// HandleCreate creates a draft listing from a multipart form (fields plus
// "images" files) or a JSON body without images.
func (lc *ListingController) HandleCreate(c *fiber.Ctx) error {
	var (
		in    listing.CreateInput
		files []listing.UploadFile
		err   error
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in, files, err = parseCreateForm(c)
	} else if err = c.BodyParser(&in); err != nil {
		err = apperrors.Validation("invalid request body")
	}
	if err != nil {
		return respondError(c, err)
	}

	created, err := lc.listings.Create(c.UserContext(), ownerFrom(c), in, files)
	if err != nil {
		return respondUploadError(c, created, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// HandleEdit applies a partial update to an owned listing
func (lc *ListingController) HandleEdit(c *fiber.Ctx) error {
	var in listing.EditInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	updated, err := lc.listings.Edit(c.UserContext(), c.Params("id"), usercontext.GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// HandleAddImages appends the uploaded images to an owned listing
func (lc *ListingController) HandleAddImages(c *fiber.Ctx) error {
	files, err := readUploadFiles(c)
	if err != nil {
		return respondError(c, err)
	}

	updated, err := lc.listings.AddImages(c.UserContext(), c.Params("id"), usercontext.GetUserID(c), files)
	if err != nil {
		return respondUploadError(c, updated, err)
	}
	return c.JSON(updated)
}

// HandleReplaceImages swaps the whole image set of an owned listing
func (lc *ListingController) HandleReplaceImages(c *fiber.Ctx) error {
	files, err := readUploadFiles(c)
	if err != nil {
		return respondError(c, err)
	}

	updated, err := lc.listings.ReplaceImages(c.UserContext(), c.Params("id"), usercontext.GetUserID(c), files)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// HandleDelete removes an owned listing
func (lc *ListingController) HandleDelete(c *fiber.Ctx) error {
	if err := lc.listings.Delete(c.UserContext(), c.Params("id"), usercontext.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleMyListings returns the caller's listings, newest first
func (lc *ListingController) HandleMyListings(c *fiber.Ctx) error {
	items, err := lc.listings.ListByOwner(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

// HandleGet returns one publicly visible listing
func (lc *ListingController) HandleGet(c *fiber.Ctx) error {
	l, err := lc.listings.GetPublic(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(l)
}

// HandleSearch pages through public listings
func (lc *ListingController) HandleSearch(c *fiber.Ctx) error {
	q := listing.SearchQuery{
		Category: c.Query("category"),
		Location: c.Query("location"),
		Text:     c.Query("q"),
		Sort:     c.Query("sort"),
		Limit:    c.QueryInt("limit", 0),
		Offset:   c.QueryInt("offset", 0),
	}

	var err error
	if q.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		return respondError(c, err)
	}
	if q.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		return respondError(c, err)
	}

	result, err := lc.listings.Search(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func ownerFrom(c *fiber.Ctx) listing.Owner {
	uc := usercontext.GetUserContext(c)
	return listing.Owner{ID: uc.UserID, Email: uc.Email, Name: uc.Name, Phone: uc.Phone}
}

// respondUploadError reports an interrupted image upload together with the
// listing id, so the client can retry the missing images.
func respondUploadError(c *fiber.Ctx, l *models.Listing, err error) error {
	var pe *listing.PartialUploadError
	if !errors.As(err, &pe) || l == nil {
		return respondError(c, err)
	}
	return respondError(c, apperrors.Persistence(pe, "image upload interrupted").WithDetails(fiber.Map{
		"listingId": l.ID,
		"uploaded":  pe.Uploaded,
		"total":     pe.Total,
	}))
}

func parseCreateForm(c *fiber.Ctx) (listing.CreateInput, []listing.UploadFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return listing.CreateInput{}, nil, apperrors.Validation("invalid multipart form")
	}

	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	in := listing.CreateInput{
		Title:       value("title"),
		Description: value("description"),
		Category:    value("category"),
		Street:      value("street"),
		Number:      value("number"),
		City:        value("city"),
		State:       value("state"),
		ZipCode:     value("zip_code"),
		Location:    value("location"),
		ContactInfo: value("contact_info"),
	}
	if raw := value("price"); raw != "" {
		price, err := parseFormPrice(raw)
		if err != nil {
			return in, nil, apperrors.Validation("invalid listing").WithDetails(map[string]string{"price": err.Error()})
		}
		in.Price = price
	}

	files, err := collectFiles(form)
	return in, files, err
}

var (
	// 1.234.567,89 or 1234567,89
	commaDecimal = regexp.MustCompile(`^(\d{1,3}(\.\d{3})*|\d+),\d+$`)
	// 1.234.567
	dotThousands = regexp.MustCompile(`^[1-9]\d{0,2}(\.\d{3}){2,}$`)
	// 100.000 reads as 100 or as 100 thousand
	dotAmbiguous = regexp.MustCompile(`^[1-9]\d{0,2}\.\d{3}$`)
)

// parseFormPrice reads a price typed into a form, accepting both 1234.56 and
// the Brazilian 1.234,56. A lone dot followed by three digits is rejected
// because it cannot be told apart from a thousands separator.
func parseFormPrice(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	switch {
	case strings.Contains(raw, ","):
		if !commaDecimal.MatchString(raw) {
			return decimal.Decimal{}, errors.New("must be a number")
		}
		raw = strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", ".")
	case dotThousands.MatchString(raw):
		raw = strings.ReplaceAll(raw, ".", "")
	case dotAmbiguous.MatchString(raw):
		return decimal.Decimal{}, errors.New("is ambiguous, write decimals with a comma (100,00) or omit the thousands separator")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.New("must be a number")
	}
	return price, nil
}

func readUploadFiles(c *fiber.Ctx) ([]listing.UploadFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.Validation("invalid multipart form")
	}
	return collectFiles(form)
}

// collectFiles reads the "images" parts in submission order.
func collectFiles(form *multipart.Form) ([]listing.UploadFile, error) {
	headers := append(append([]*multipart.FileHeader{}, form.File["images"]...), form.File["images[]"]...)
	if len(headers) > upload.MaxImagesPerListing {
		return nil, apperrors.Validation(fmt.Sprintf("a listing can hold at most %d images", upload.MaxImagesPerListing))
	}

	files := make([]listing.UploadFile, 0, len(headers))
	for i, fh := range headers {
		if err := upload.ValidateSize(fh.Size); err != nil {
			return nil, apperrors.Validation("invalid image").WithDetails(map[string]string{
				fmt.Sprintf("images[%d]", i): fmt.Sprintf("%s: %v", fh.Filename, err),
			})
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperrors.Validation("could not read uploaded image")
		}
		data, err := io.ReadAll(io.LimitReader(f, upload.MaxImageBytes+1))
		f.Close()
		if err != nil {
			return nil, apperrors.Validation("could not read uploaded image")
		}
		files = append(files, listing.UploadFile{Filename: fh.Filename, Data: data})
	}
	return files, nil
}

func queryDecimal(c *fiber.Ctx, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.Validation("invalid search").WithDetails(map[string]string{key: "must be a number"})
	}
	return &d, nil
}
