package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleGetAccount returns the caller's mirror row and how many free
// publications remain.
func (lc *ListingController) HandleGetAccount(c *fiber.Ctx) error {
	account, err := lc.listings.Account(c.UserContext(), ownerFrom(c))
	if err != nil {
		return respondError(c, err)
	}

	user := account.User
	return c.JSON(fiber.Map{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"phone":      user.Phone,
		"created_at": formatTimePtr(&user.CreatedAt),
		"limits": fiber.Map{
			"free_listings_cap":       account.FreeListingsCap,
			"free_listings_used":      user.FreeListingsUsed,
			"free_listings_remaining": account.FreeListingsRemaining,
		},
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
