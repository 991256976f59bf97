package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthController reports whether the backing services answer.
type HealthController struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthController(db *gorm.DB, client *redis.Client) *HealthController {
	return &HealthController{db: db, redis: client}
}

// HandleHealth pings the database (required) and the cache (optional).
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	checks := fiber.Map{"database": "ok", "cache": "disabled"}

	if hc.db == nil {
		checks["database"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	} else if sqlDB, err := hc.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	if hc.redis != nil {
		checks["cache"] = "ok"
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			checks["cache"] = "degraded"
		}
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "unavailable"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}
