// Package serverless exposes the fiber application as a net/http handler for
// function runtimes. It only marshals requests and responses; every route
// behaves exactly as on the long-running server.
package serverless

import (
	"context"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/americavendas/marketplace/internal/pkg/bootstrap"
	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/env"
)

var (
	mu      sync.Mutex
	handler http.HandlerFunc

	build      = buildApp
	newRuntime = bootstrap.New
)

// Wrap converts a fiber app into a net/http handler.
func Wrap(app *fiber.App) http.HandlerFunc {
	return adaptor.FiberApp(app)
}

// Handler is the function entrypoint. The application is built on the first
// invocation and reused while the runtime instance stays warm. A failed
// build is retried by the next invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := current(r.Context())
	if err != nil {
		http.Error(w, `{"error":"persistence_error","message":"internal error, please retry"}`, http.StatusInternalServerError)
		return
	}
	h(w, r)
}

func current(ctx context.Context) (http.HandlerFunc, error) {
	mu.Lock()
	defer mu.Unlock()
	if handler != nil {
		return handler, nil
	}
	h, err := build(ctx)
	if err != nil {
		return nil, err
	}
	handler = h
	return h, nil
}

func buildApp(ctx context.Context) (http.HandlerFunc, error) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Errorf("[Serverless] invalid configuration: %v", err)
		return nil, err
	}
	// Function instances are frozen between invocations, so no manager runs:
	// views are written through, storage cleanup happens in the request and
	// the expiry sweep runs from a scheduled `migrate sweep`.
	rt, err := newRuntime(context.WithoutCancel(ctx), cfg, bootstrap.Options{Background: false})
	if err != nil {
		log.Errorf("[Serverless] bootstrap failed: %v", err)
		return nil, err
	}
	return Wrap(rt.App), nil
}
