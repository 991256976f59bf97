package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/americavendas/marketplace/app/repository"
	"github.com/americavendas/marketplace/internal/pkg/cache"
	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/counter"
	"github.com/americavendas/marketplace/internal/pkg/database"
	"github.com/americavendas/marketplace/internal/pkg/env"
	"github.com/americavendas/marketplace/internal/pkg/jobqueue"
	"github.com/americavendas/marketplace/internal/pkg/listing"
	"github.com/americavendas/marketplace/internal/pkg/storage"
)

func main() {
	// Load variables from .env
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "sweep" {
		runSweep()
		return
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("Invalid database configuration: %v", err)
	}

	dbURL, err := migrationURL(dbCfg)
	if err != nil {
		log.Fatalf("Invalid database configuration: %v", err)
	}
	log.Printf("Connecting to %s database %s", dbCfg.Driver, redact(dbURL))

	m, err := migrate.New(
		"file://migrations/"+dbCfg.Driver, // one migration set per driver
		dbURL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		// Run all pending migrations
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No change: database is up to date")
		} else {
			log.Println("Migrations applied")
		}

	case "down":
		// Roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatalf("Failed to roll back the last migration: %v", err)
		} else {
			log.Println("Last migration rolled back")
		}

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("Please pass a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid version number: %v", err)
		}

		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to migrate to version %d: %v", version, err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Printf("No change: database is already at version %d", version)
		} else {
			log.Printf("Migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("No migrations have been applied yet")
			} else {
				log.Fatalf("Failed to read migration version: %v", err)
			}
		} else {
			dirtyStatus := ""
			if dirty {
				dirtyStatus = " (dirty)"
			}
			log.Printf("Current migration version: %d%s", version, dirtyStatus)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

// runSweep runs one maintenance pass: it expires published listings past
// their expiry, flushes buffered view counters and drains the storage
// cleanup queue. Scheduled jobs call it where no long-running server hosts
// the manager.
func runSweep() {
	cfg, err := config.LoadMaintenance()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	ctx := context.Background()

	db, err := database.Open(cfg.Database, false)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close(db)

	repos := repository.NewRepositories(db)
	managerCfg := jobqueue.ManagerConfig{
		Expirer: listing.NewService(listing.Deps{Repos: repos}),
	}

	client := cache.NewClient(cfg.Cache)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Cache unavailable, skipping view counters and cleanup queue: %v", err)
		_ = client.Close()
	} else {
		defer client.Close()
		store, err := storage.New(ctx, cfg.Storage, false)
		if err != nil {
			log.Fatalf("Failed to open storage: %v", err)
		}
		managerCfg.Flusher = counter.New(client, repos.Listing)
		managerCfg.Queue = jobqueue.NewQueue(client, store, 1)
	}

	report, err := jobqueue.NewManager(managerCfg).RunOnce(ctx)
	log.Printf("Expired %d listings, flushed views of %d listings, ran %d cleanup jobs",
		report.Expired, report.Flushed, report.Cleaned)
	if err != nil {
		log.Fatalf("Maintenance failed: %v", err)
	}
}

// migrationURL converts the database settings into a golang-migrate URL.
func migrationURL(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.URL != "" {
			return cfg.URL, nil
		}
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     cfg.Host + ":" + port,
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
		}
		return u.String(), nil
	case "mysql":
		dsn := cfg.URL
		if dsn == "" {
			port := cfg.Port
			if port == "" {
				port = "3306"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", cfg.User, cfg.Password, cfg.Host, port, cfg.Name)
		}
		dsn = strings.TrimPrefix(dsn, "mysql://")
		if !strings.Contains(dsn, "multiStatements=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "multiStatements=true"
		}
		return "mysql://" + dsn, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// redact hides the password before logging a connection URL.
func redact(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	creds := raw[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return raw[:scheme+3] + creds + raw[at:]
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
	fmt.Println("  sweep  - expire listings, flush view counters, drain the cleanup queue")
}
