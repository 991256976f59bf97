package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingImage is one uploaded file of a listing.
type ListingImage struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID     string    `gorm:"type:varchar(36);not null;index:idx_images_listing_position,priority:1" json:"listing_id"`
	URL           string    `gorm:"type:varchar(1024);not null" json:"url"`
	ThumbnailURL  string    `gorm:"type:varchar(1024)" json:"thumbnail_url,omitempty"`
	StoragePath   string    `gorm:"type:varchar(512);not null" json:"storage_path"`
	ThumbnailPath string    `gorm:"type:varchar(512)" json:"-"`
	Position      int       `gorm:"not null;default:0;index:idx_images_listing_position,priority:2" json:"position"`
	ContentType   string    `gorm:"type:varchar(50)" json:"content_type"`
	SizeBytes     int64     `gorm:"type:bigint" json:"size_bytes"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ListingImage) TableName() string {
	return "images"
}

func (i *ListingImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// StorageKeys returns every object key belonging to this image.
func (i *ListingImage) StorageKeys() []string {
	keys := []string{i.StoragePath}
	if i.ThumbnailPath != "" {
		keys = append(keys, i.ThumbnailPath)
	}
	return keys
}
