package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User mirrors an identity-provider account. The row is created lazily the
// first time the account touches a listing.
type User struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email            string    `gorm:"type:varchar(200);index" json:"email"`
	Name             string    `gorm:"type:varchar(150)" json:"name"`
	Phone            string    `gorm:"type:varchar(40)" json:"phone"`
	FreeListingsUsed int       `gorm:"not null;default:0" json:"free_listings_used"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id is required")
	}
	return nil
}

// FreeListingsRemaining returns how many free publications are left under cap.
func (u *User) FreeListingsRemaining(cap int) int {
	if u.FreeListingsUsed >= cap {
		return 0
	}
	return cap - u.FreeListingsUsed
}
