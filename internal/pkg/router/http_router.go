package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/americavendas/marketplace/app/controllers"
)

// HttpRouter installs the operational routes: health, metrics and the
// locally stored uploads.
type HttpRouter struct {
	deps Deps
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	health := controllers.NewHealthController(h.deps.DB, h.deps.Redis)
	app.Get("/healthz", health.HandleHealth)

	// fiber metrics
	metrics := h.deps.Config.Metrics
	if metrics.Password != "" {
		auth := basicauth.New(basicauth.Config{
			Users: map[string]string{
				metrics.User: metrics.Password,
			},
		})
		if h.deps.Queue != nil {
			queue := controllers.NewQueueController(h.deps.Queue)
			app.Get("/metrics/queue", auth, queue.HandleQueueStats)
		}
		app.Get("/metrics", auth, monitor.New(monitor.Config{Title: "Marketplace Metrics"}))
	}

	// static uploads (local storage driver only)
	if h.deps.UploadsDir != "" {
		app.Static("/uploads", h.deps.UploadsDir, fiber.Static{
			Compress: false,
			MaxAge:   604800, // 7 days
		})
	}
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}
