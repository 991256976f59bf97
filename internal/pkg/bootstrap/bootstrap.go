// Package bootstrap wires configuration, persistence and services into the
// fiber application. The HTTP server and the serverless handler share it.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/americavendas/marketplace/app/repository"
	"github.com/americavendas/marketplace/internal/pkg/billing"
	"github.com/americavendas/marketplace/internal/pkg/cache"
	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/counter"
	"github.com/americavendas/marketplace/internal/pkg/database"
	"github.com/americavendas/marketplace/internal/pkg/jobqueue"
	"github.com/americavendas/marketplace/internal/pkg/listing"
	"github.com/americavendas/marketplace/internal/pkg/plans"
	"github.com/americavendas/marketplace/internal/pkg/router"
	"github.com/americavendas/marketplace/internal/pkg/storage"
	"github.com/americavendas/marketplace/internal/pkg/validation"
)

// Runtime holds the wired application and the resources it owns.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	App      *fiber.App
	Listings *listing.Service
	Gateway  *billing.Gateway
	Manager  *jobqueue.Manager
}

// Options tells New how the runtime will be hosted.
type Options struct {
	// Background is set when the caller starts Runtime.Manager. Without it
	// nothing would drain the cleanup queue or flush buffered view counters,
	// so views are written through and storage cleanup runs inline.
	Background bool
}

// New connects to every backing service and builds the application. The
// background manager is created but not started.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Open(cfg.Database, cfg.IsDev())
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, cfg.Storage, cfg.IsDev())
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("storage: %w", err)
	}

	client := connectCache(ctx, cfg.Cache)
	repos := repository.NewFactory(db).GetRepositories()
	validate := validation.New()
	listingCache := cache.NewStore(client, cfg.Cache.TTL)
	views, queue := backgroundDeps(client, store, repos, cfg.Worker, opts.Background)

	var cleanup listing.CleanupScheduler
	if queue != nil {
		cleanup = queue
	}

	listings := listing.NewService(listing.Deps{
		Repos:    repos,
		Store:    store,
		Cache:    listingCache,
		Views:    views,
		Cleanup:  cleanup,
		FreeCap:  cfg.Plans.FreeListingCap,
		Validate: validate,
	})

	gateway := billing.NewGateway(billing.Deps{
		Repos:       repos,
		Events:      billing.NewEventRepository(db),
		Provider:    billing.NewStripeProvider(cfg.Stripe),
		Catalog:     plans.NewCatalog(cfg.Plans),
		Cache:       listingCache,
		FrontendURL: cfg.App.FrontendURL,
		Validate:    validate,
	})

	manager := jobqueue.NewManager(jobqueue.ManagerConfig{
		Queue:            queue,
		Expirer:          listings,
		Flusher:          views,
		ExpirySweepEvery: cfg.Worker.ExpirySweepEvery,
		CounterFlush:     cfg.Worker.CounterFlush,
	})

	deps := router.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    client,
		Listings: listings,
		Payments: gateway,
	}
	if queue != nil {
		deps.Queue = queue
	}
	if local, ok := store.(*storage.LocalStore); ok {
		deps.UploadsDir = local.Dir()
	}
	if client != nil {
		deps.LimiterStorage = limiterStorage(cfg.Cache)
	}

	return &Runtime{
		Config:   cfg,
		DB:       db,
		Redis:    client,
		App:      router.NewApp(deps),
		Listings: listings,
		Gateway:  gateway,
		Manager:  manager,
	}, nil
}

// Close stops background work and releases connections.
func (r *Runtime) Close() {
	if r.Manager != nil {
		r.Manager.Stop()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	database.Close(r.DB)
}

// backgroundDeps picks the view counter and cleanup queue. Buffering in Redis
// only pays off when a manager runs to flush and drain it; otherwise the
// queue is nil and the counter writes through.
func backgroundDeps(client *redis.Client, store storage.Store, repos *repository.Repositories, cfg config.WorkerConfig, background bool) (*counter.Counter, *jobqueue.Queue) {
	if client == nil || !background {
		return counter.New(nil, repos.Listing), nil
	}
	return counter.New(client, repos.Listing), jobqueue.NewQueue(client, store, cfg.QueueWorkers)
}

// connectCache returns nil when the cache does not answer, which turns
// caching, view buffering and the cleanup queue off.
func connectCache(ctx context.Context, cfg config.CacheConfig) *redis.Client {
	client := cache.NewClient(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("[Bootstrap] cache unavailable, running without it: %v", err)
		_ = client.Close()
		return nil
	}
	return client
}

// limiterStorage keeps rate-limit counters in a separate Redis database
// so instances behind a load balancer share them.
func limiterStorage(cfg config.CacheConfig) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: cfg.DB + 1,
		Reset:    false,
	})
}
