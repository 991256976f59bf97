package listing

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/app/repository"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/cache"
	"github.com/americavendas/marketplace/internal/pkg/counter"
	"github.com/americavendas/marketplace/internal/pkg/storage"
	"github.com/americavendas/marketplace/internal/pkg/validation"
)

// CleanupScheduler removes the storage objects of a listing out of band.
type CleanupScheduler interface {
	ScheduleStorageCleanup(ctx context.Context, listingID string, keys []string) error
}

// Deps are the collaborators of the listing service.
type Deps struct {
	Repos    *repository.Repositories
	Store    storage.Store
	Cache    *cache.Store
	Views    *counter.Counter
	Cleanup  CleanupScheduler
	FreeCap  int
	Now      func() time.Time
	Validate *validator.Validate
}

// Service manages the listing lifecycle on behalf of owners.
type Service struct {
	repos    *repository.Repositories
	store    storage.Store
	cache    *cache.Store
	views    *counter.Counter
	cleanup  CleanupScheduler
	freeCap  int
	now      func() time.Time
	validate *validator.Validate
}

func NewService(d Deps) *Service {
	s := &Service{
		repos:    d.Repos,
		store:    d.Store,
		cache:    d.Cache,
		views:    d.Views,
		cleanup:  d.Cleanup,
		freeCap:  d.FreeCap,
		now:      d.Now,
		validate: d.Validate,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.validate == nil {
		s.validate = validation.New()
	}
	return s
}

// Create validates the input, makes sure the owner's mirror row exists,
// inserts a draft listing and uploads its images in order. When an upload
// fails the listing is kept with the images uploaded so far and returned
// together with the error.
func (s *Service) Create(ctx context.Context, owner Owner, in CreateInput, files []UploadFile) (*models.Listing, error) {
	if owner.ID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	in.Category = normalizeCategory(in.Category)
	if err := validation.Struct(s.validate, in, "invalid listing"); err != nil {
		return nil, err
	}
	prepared, err := prepareFiles(files, 0)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.User.EnsureExists(ctx, &models.User{
		ID:    owner.ID,
		Email: owner.Email,
		Name:  owner.Name,
		Phone: owner.Phone,
	}); err != nil {
		log.Errorf("[Listing] ensure user %s: %v", owner.ID, err)
		return nil, err
	}

	listing := &models.Listing{
		UserID:      owner.ID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Status:      models.ListingStatusDraft,
		Street:      in.Street,
		Number:      in.Number,
		City:        in.City,
		State:       in.State,
		ZipCode:     in.ZipCode,
		Location:    in.Location,
		ContactInfo: in.ContactInfo,
	}
	if err := s.repos.Listing.Create(ctx, listing); err != nil {
		log.Errorf("[Listing] insert listing for %s: %v", owner.ID, err)
		return nil, err
	}
	log.Infof("[Listing] created %s for %s", listing.ID, owner.ID)

	if len(prepared) == 0 {
		return listing, nil
	}

	images, uploadErr := s.uploadImages(ctx, listing, prepared, 0)
	urls := imageURLs(images)
	if len(urls) > 0 {
		if err := s.repos.Listing.UpdateFields(ctx, listing.ID, map[string]interface{}{"images": urlsValue(urls)}); err != nil {
			log.Errorf("[Listing] save image list for %s: %v", listing.ID, err)
			return listing, err
		}
		listing.Images = urlsValue(urls)
	}
	listing.ListingImages = images
	if uploadErr != nil {
		return listing, uploadErr
	}
	return listing, nil
}

// Edit updates the mutable fields of an owned listing.
func (s *Service) Edit(ctx context.Context, listingID, ownerID string, in EditInput) (*models.Listing, error) {
	if in.Category != nil {
		c := normalizeCategory(*in.Category)
		in.Category = &c
	}
	if err := validation.Struct(s.validate, in, "invalid listing"); err != nil {
		return nil, err
	}

	if _, err := s.repos.Listing.GetOwned(ctx, listingID, ownerID); err != nil {
		return nil, err
	}

	fields := in.fields()
	if len(fields) > 0 {
		if err := s.repos.Listing.UpdateFields(ctx, listingID, fields); err != nil {
			log.Errorf("[Listing] update %s: %v", listingID, err)
			return nil, err
		}
		s.invalidate(ctx, listingID)
	}
	return s.repos.Listing.GetOwned(ctx, listingID, ownerID)
}

// AddImages appends new images to an owned listing, keeping existing ones.
func (s *Service) AddImages(ctx context.Context, listingID, ownerID string, files []UploadFile) (*models.Listing, error) {
	listing, err := s.repos.Listing.GetOwned(ctx, listingID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.Validation("at least one image is required")
	}
	prepared, err := prepareFiles(files, len(listing.Images))
	if err != nil {
		return nil, err
	}

	start, err := s.repos.Image.NextPosition(ctx, listingID)
	if err != nil {
		return nil, err
	}

	images, uploadErr := s.uploadImages(ctx, listing, prepared, start)
	if len(images) > 0 {
		urls := append(append([]string{}, listing.Images...), imageURLs(images)...)
		if err := s.repos.Listing.UpdateFields(ctx, listingID, map[string]interface{}{"images": urlsValue(urls)}); err != nil {
			log.Errorf("[Listing] save image list for %s: %v", listingID, err)
			return nil, err
		}
		s.invalidate(ctx, listingID)
	}

	updated, err := s.repos.Listing.GetOwned(ctx, listingID, ownerID)
	if err != nil {
		return nil, err
	}
	if uploadErr != nil {
		return updated, uploadErr
	}
	return updated, nil
}

// ReplaceImages swaps the full image set of an owned listing. The old set
// stays in place unless every new image uploads. At least one image is
// required; a listing cannot be emptied through a replace.
func (s *Service) ReplaceImages(ctx context.Context, listingID, ownerID string, files []UploadFile) (*models.Listing, error) {
	listing, err := s.repos.Listing.GetOwned(ctx, listingID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.Validation("at least one image is required")
	}
	prepared, err := prepareFiles(files, 0)
	if err != nil {
		return nil, err
	}

	images, uploadErr := s.uploadImages(ctx, listing, prepared, 0)
	if uploadErr != nil {
		s.discardImages(ctx, images)
		return nil, uploadErr
	}

	old := listing.ListingImages
	oldIDs := make([]string, 0, len(old))
	oldKeys := make([]string, 0, len(old)*2)
	for _, img := range old {
		oldIDs = append(oldIDs, img.ID)
		oldKeys = append(oldKeys, img.StorageKeys()...)
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Image.DeleteByIDs(ctx, oldIDs); err != nil {
			return err
		}
		return tx.Listing.UpdateFields(ctx, listingID, map[string]interface{}{"images": urlsValue(imageURLs(images))})
	})
	if err != nil {
		log.Errorf("[Listing] replace images of %s: %v", listingID, err)
		s.discardImages(ctx, images)
		return nil, err
	}

	s.scheduleCleanup(ctx, listingID, oldKeys)
	s.invalidate(ctx, listingID)
	return s.repos.Listing.GetOwned(ctx, listingID, ownerID)
}

// Delete hard-deletes an owned listing with its image rows and unfinished
// payments, then schedules removal of the stored files.
func (s *Service) Delete(ctx context.Context, listingID, ownerID string) error {
	listing, err := s.repos.Listing.GetOwned(ctx, listingID, ownerID)
	if err != nil {
		return err
	}
	keys := listing.ImageKeys()

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Image.DeleteByListing(ctx, listingID); err != nil {
			return err
		}
		if err := tx.Payment.DeletePendingByListing(ctx, listingID); err != nil {
			return err
		}
		return tx.Listing.Delete(ctx, listingID)
	})
	if err != nil {
		log.Errorf("[Listing] delete %s: %v", listingID, err)
		return err
	}

	log.Infof("[Listing] deleted %s (%d stored objects)", listingID, len(keys))
	s.scheduleCleanup(ctx, listingID, keys)
	s.invalidate(ctx, listingID)
	return nil
}

// ListByOwner returns the owner's listings newest first, annotated for the dashboard.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]OwnerListing, error) {
	listings, err := s.repos.Listing.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]OwnerListing, 0, len(listings))
	for _, l := range listings {
		item := OwnerListing{Listing: l, Badge: l.EffectiveStatus(now)}
		if days := l.DaysRemaining(now); days >= 0 {
			item.DaysRemaining = &days
		}
		out = append(out, item)
	}
	return out, nil
}

// GetPublic returns a publicly visible listing and counts the view.
func (s *Service) GetPublic(ctx context.Context, id string) (*models.Listing, error) {
	now := s.now()

	var cached models.Listing
	found, err := s.cache.GetJSON(ctx, cache.ListingKey(id), &cached)
	if err != nil {
		log.Warnf("[Listing] cache read %s: %v", id, err)
	}
	if found && cached.IsPubliclyVisible(now) {
		s.countView(ctx, id)
		return &cached, nil
	}

	listing, err := s.repos.Listing.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.IsPubliclyVisible(now) {
		return nil, apperrors.NotFound("listing")
	}

	if err := s.cache.SetJSON(ctx, cache.ListingKey(id), listing); err != nil {
		log.Warnf("[Listing] cache write %s: %v", id, err)
	}
	s.countView(ctx, id)
	return listing, nil
}

// Search returns a page of publicly visible listings.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	q.Category = normalizeCategory(q.Category)
	if err := validation.Struct(s.validate, q, "invalid search"); err != nil {
		return nil, err
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, apperrors.Validation("min_price must not exceed max_price")
	}

	filter := repository.ListingFilter{
		Now:      s.now(),
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Location: q.Location,
		Text:     q.Text,
		Sort:     q.Sort,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	items, total, err := s.repos.Listing.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	return &SearchResult{Items: items, Total: total, Limit: limit, Offset: q.Offset}, nil
}

// ExpireDue moves published listings past their expiry to expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	ids, err := s.repos.Listing.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.ListingKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warnf("[Listing] cache invalidate expired listings: %v", err)
	}
	log.Infof("[Listing] expired %d listings", len(ids))
	return len(ids), nil
}

// Account returns the caller's mirror row and remaining free quota.
func (s *Service) Account(ctx context.Context, owner Owner) (*Account, error) {
	user, err := s.repos.User.EnsureExists(ctx, &models.User{
		ID:    owner.ID,
		Email: owner.Email,
		Name:  owner.Name,
		Phone: owner.Phone,
	})
	if err != nil {
		return nil, err
	}
	return &Account{
		User:                  user,
		FreeListingsCap:       s.freeCap,
		FreeListingsRemaining: user.FreeListingsRemaining(s.freeCap),
	}, nil
}

func (s *Service) countView(ctx context.Context, id string) {
	if err := s.views.AddListingView(ctx, id); err != nil {
		log.Warnf("[Listing] count view %s: %v", id, err)
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.ListingKey(id)); err != nil {
		log.Warnf("[Listing] cache invalidate %s: %v", id, err)
	}
}

// scheduleCleanup hands keys to the cleanup queue, deleting inline when no
// queue is available.
func (s *Service) scheduleCleanup(ctx context.Context, listingID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	if s.cleanup != nil {
		err := s.cleanup.ScheduleStorageCleanup(ctx, listingID, keys)
		if err == nil {
			return
		}
		log.Warnf("[Listing] enqueue storage cleanup failed, deleting inline: %v", err)
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		log.Errorf("[Listing] delete %d stored objects of %s: %v", len(keys), listingID, err)
	}
}

// discardImages removes rows and files of images that will not be kept.
func (s *Service) discardImages(ctx context.Context, images []models.ListingImage) {
	if len(images) == 0 {
		return
	}
	ids := make([]string, 0, len(images))
	keys := make([]string, 0, len(images)*2)
	for _, img := range images {
		ids = append(ids, img.ID)
		keys = append(keys, img.StorageKeys()...)
	}
	listingID := images[0].ListingID
	if err := s.repos.Image.DeleteByIDs(ctx, ids); err != nil {
		log.Errorf("[Listing] discard image rows of %s: %v", listingID, err)
	}
	s.scheduleCleanup(ctx, listingID, keys)
}

func (in EditInput) fields() map[string]interface{} {
	fields := map[string]interface{}{}
	set := func(column string, v *string) {
		if v != nil {
			fields[column] = *v
		}
	}
	set("title", in.Title)
	set("description", in.Description)
	set("category", in.Category)
	set("street", in.Street)
	set("number", in.Number)
	set("city", in.City)
	set("state", in.State)
	set("zip_code", in.ZipCode)
	set("location", in.Location)
	set("contact_info", in.ContactInfo)
	if in.Price != nil {
		fields["price"] = *in.Price
	}
	return fields
}

// IsPartialUpload reports whether err came from an interrupted image upload
// that left the listing in place.
func IsPartialUpload(err error) bool {
	var pe *PartialUploadError
	return errors.As(err, &pe)
}
