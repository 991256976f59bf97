package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/americavendas/marketplace/app/controllers"
	"github.com/americavendas/marketplace/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	listings := controllers.NewListingController(h.deps.Listings)
	payments := controllers.NewPaymentController(h.deps.Payments)

	identity := middleware.IdentityMiddleware(h.deps.Config.Auth)
	limit := limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Storage:    h.deps.LimiterStorage,
	})

	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Provider webhooks are neither authenticated nor rate limited: the
	// signature is the authentication and the provider retries on failure.
	api.Post("/webhook", payments.HandleWebhook)
	api.Post("/stripe-webhook", payments.HandleWebhook)

	api.Post("/create-payment-session", limit, identity, payments.HandleCreatePaymentSession)
	app.Post("/create-payment-session", limit, identity, payments.HandleCreatePaymentSession)

	// API v1 routes
	v1 := api.Group("/v1", limit, identity)
	v1.Get("/listings", listings.HandleSearch)
	v1.Get("/listings/:id", listings.HandleGet)

	auth := middleware.RequireAPIAuth
	v1.Post("/listings", auth, listings.HandleCreate)
	v1.Put("/listings/:id", auth, listings.HandleEdit)
	v1.Delete("/listings/:id", auth, listings.HandleDelete)
	v1.Post("/listings/:id/images", auth, listings.HandleAddImages)
	v1.Put("/listings/:id/images", auth, listings.HandleReplaceImages)
	v1.Get("/listings/:id/payments", auth, payments.HandleListingPayments)
	v1.Get("/payments/:sessionId", auth, payments.HandlePaymentStatus)
	v1.Get("/me", auth, listings.HandleGetAccount)
	v1.Get("/me/listings", auth, listings.HandleMyListings)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
