package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/americavendas/marketplace/app/controllers"
	"github.com/americavendas/marketplace/internal/pkg/config"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps is everything the HTTP layer needs. Redis, Queue, LimiterStorage and
// UploadsDir are optional.
type Deps struct {
	Config         *config.Config
	DB             *gorm.DB
	Redis          *redis.Client
	Listings       controllers.ListingService
	Payments       controllers.PaymentGateway
	Queue          controllers.CleanupQueue
	LimiterStorage fiber.Storage
	UploadsDir     string
	DocsFile       string
}

func InstallRouter(app *fiber.App, deps Deps) {
	// HttpRouter carries the operational routes; ApiRouter the JSON API.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
