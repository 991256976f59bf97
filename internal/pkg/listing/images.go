package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/imageprocessor"
	"github.com/americavendas/marketplace/internal/pkg/upload"
)

// PartialUploadError reports an image upload that stopped part way. The
// listing exists and keeps the first Uploaded images.
type PartialUploadError struct {
	Uploaded int
	Total    int
	Err      error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("uploaded %d of %d images: %v", e.Uploaded, e.Total, e.Err)
}

func (e *PartialUploadError) Unwrap() error {
	return e.Err
}

type preparedFile struct {
	name        string
	data        []byte
	contentType string
	ext         string
}

// prepareFiles validates every file before anything is written.
func prepareFiles(files []UploadFile, existing int) ([]preparedFile, error) {
	if existing+len(files) > upload.MaxImagesPerListing {
		return nil, apperrors.Validation(fmt.Sprintf("a listing can hold at most %d images", upload.MaxImagesPerListing))
	}

	out := make([]preparedFile, 0, len(files))
	for i, f := range files {
		if err := upload.ValidateSize(int64(len(f.Data))); err != nil {
			return nil, fileError(i, f.Filename, err)
		}
		head := f.Data
		if len(head) > upload.SniffLen {
			head = head[:upload.SniffLen]
		}
		mime, err := upload.ValidateImageBySniff(f.Filename, head)
		if err != nil {
			return nil, fileError(i, f.Filename, err)
		}
		ext := upload.ExtensionFor(mime)
		if ext == "" {
			ext = strings.ToLower(filepath.Ext(f.Filename))
		}
		out = append(out, preparedFile{name: f.Filename, data: f.Data, contentType: mime, ext: ext})
	}
	return out, nil
}

func fileError(i int, name string, err error) error {
	return apperrors.Validation("invalid image").WithDetails(map[string]string{
		fmt.Sprintf("images[%d]", i): fmt.Sprintf("%s: %v", name, err),
	})
}

// uploadImages stores files one by one and records an image row for each.
// It stops at the first failure and returns what was stored so far.
func (s *Service) uploadImages(ctx context.Context, listing *models.Listing, files []preparedFile, startPos int) ([]models.ListingImage, error) {
	images := make([]models.ListingImage, 0, len(files))
	for i, f := range files {
		img, err := s.uploadOne(ctx, listing, f, i, startPos+i)
		if err != nil {
			log.Errorf("[Listing] upload image %d/%d of %s: %v", i+1, len(files), listing.ID, err)
			return images, &PartialUploadError{Uploaded: len(images), Total: len(files), Err: err}
		}
		images = append(images, *img)
	}
	return images, nil
}

func (s *Service) uploadOne(ctx context.Context, listing *models.Listing, f preparedFile, index, position int) (*models.ListingImage, error) {
	base := fmt.Sprintf("listings/%s/%s/%d-%d", listing.UserID, listing.ID, time.Now().UnixNano(), index)
	key := base + f.ext

	url, err := s.store.Put(ctx, key, bytes.NewReader(f.data), int64(len(f.data)), f.contentType)
	if err != nil {
		return nil, apperrors.Provider(err, "image storage unavailable")
	}

	img := &models.ListingImage{
		ListingID:   listing.ID,
		URL:         url,
		StoragePath: key,
		Position:    position,
		ContentType: f.contentType,
		SizeBytes:   int64(len(f.data)),
	}

	thumb, err := imageprocessor.Thumbnail(f.data, imageprocessor.ThumbnailWidth)
	switch {
	case err == nil:
		thumbKey := base + "-thumb.jpg"
		thumbURL, putErr := s.store.Put(ctx, thumbKey, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), "image/jpeg")
		if putErr != nil {
			log.Warnf("[Listing] store thumbnail %s: %v", thumbKey, putErr)
		} else {
			img.ThumbnailURL = thumbURL
			img.ThumbnailPath = thumbKey
		}
	case errors.Is(err, imageprocessor.ErrNotDecodable):
	default:
		log.Warnf("[Listing] thumbnail for %s: %v", key, err)
	}

	if err := s.repos.Image.Create(ctx, img); err != nil {
		if delErr := s.store.Delete(ctx, img.StorageKeys()...); delErr != nil {
			log.Warnf("[Listing] remove orphaned object %s: %v", key, delErr)
		}
		return nil, err
	}
	return img, nil
}

func imageURLs(images []models.ListingImage) []string {
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	return urls
}

func urlsValue(urls []string) datatypes.JSONSlice[string] {
	if urls == nil {
		urls = []string{}
	}
	return datatypes.JSONSlice[string](urls)
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
