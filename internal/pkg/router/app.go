package router

import (
	"os"
	"strings"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// docsCandidates are tried in order when Deps.DocsFile is empty.
var docsCandidates = []string{
	"./public/docs/v1/openapi.yml",       // Current directory
	"../../public/docs/v1/openapi.yml",   // From cmd/marketplace to project root
	"../../../public/docs/v1/openapi.yml", // Fallback
}

// NewApp builds the fiber application with middleware and all routes.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: deps.Config.App.BodyLimit,
		AppName:   "marketplace",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	origins := deps.Config.App.FrontendURL
	if deps.Config.IsDev() {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods: strings.Join([]string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions,
		}, ","),
	}))

	// SWAGGER / OPENAPI
	if docs := findDocs(deps.DocsFile); docs != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docs,
			Path:     "v1",
		}))
	} else {
		log.Warn("[Router] openapi.yml not found, API docs disabled")
	}

	// ROUTER
	InstallRouter(app, deps)

	return app
}

func findDocs(explicit string) string {
	candidates := docsCandidates
	if explicit != "" {
		candidates = []string{explicit}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
