package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

// translate maps gorm errors onto the application error kinds.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource)
	}
	return apperrors.Persistence(err, resource+" query failed")
}
