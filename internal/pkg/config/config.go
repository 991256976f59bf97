package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/americavendas/marketplace/internal/pkg/env"
)

// Config is built once at process start and handed to every component that
// needs it. Handlers never read the environment themselves.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Stripe   StripeConfig
	Plans    PlanConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
	Worker   WorkerConfig
}

type AppConfig struct {
	Host        string
	Port        string
	Env         string
	FrontendURL string
	BodyLimit   int
}

type DatabaseConfig struct {
	Driver      string // postgres | mysql
	URL         string // optional DSN override (e.g. a Supabase connection string)
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// PlanConfig carries the provider-facing part of the plan catalog.
type PlanConfig struct {
	Currency           string
	BasicPriceID       string
	PremiumPriceID     string
	BasicAmountCents   int64
	PremiumAmountCents int64
	FreeListingCap     int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type StorageConfig struct {
	Driver          string // s3 | local
	Bucket          string
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	LocalDir        string
}

type MetricsConfig struct {
	User     string
	Password string
}

type WorkerConfig struct {
	QueueWorkers     int
	ExpirySweepEvery time.Duration
	CounterFlush     time.Duration
}

// Load reads the configuration from the environment (after env.SetupEnvFile).
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMaintenance reads the settings scheduled maintenance needs: database,
// cache, storage and workers. Payment and auth secrets are not required.
func LoadMaintenance() (*Config, error) {
	cfg := fromEnv()
	if err := errors.Join(validateDatabase(cfg.Database), validateStorage(cfg.Storage)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		App: AppConfig{
			Host:        env.GetEnv("APP_HOST", "localhost"),
			Port:        env.GetEnv("APP_PORT", "4000"),
			Env:         env.GetEnv("APP_ENV", "prod"),
			FrontendURL: strings.TrimRight(env.GetEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			BodyLimit:   env.GetInt("APP_BODY_LIMIT", 50*1024*1024),
		},
		Database: databaseFromEnv(),
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       env.GetInt("CACHE_DB", 0),
			TTL:      env.GetDuration("CACHE_TTL", 2*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Plans: PlanConfig{
			Currency:           strings.ToLower(env.GetEnv("PLAN_CURRENCY", "brl")),
			BasicPriceID:       env.GetEnv("STRIPE_BASIC_PRICE_ID", ""),
			PremiumPriceID:     env.GetEnv("STRIPE_PREMIUM_PRICE_ID", ""),
			BasicAmountCents:   env.GetInt64("PLAN_BASIC_AMOUNT_CENTS", 990),
			PremiumAmountCents: env.GetInt64("PLAN_PREMIUM_AMOUNT_CENTS", 4990),
			FreeListingCap:     env.GetInt("FREE_LISTING_CAP", 5),
		},
		Auth: AuthConfig{
			JWTSecret: env.GetEnv("AUTH_JWT_SECRET", ""),
			Issuer:    env.GetEnv("AUTH_JWT_ISSUER", ""),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(env.GetEnv("STORAGE_DRIVER", "local")),
			Bucket:          env.GetEnv("S3_BUCKET_NAME", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			PublicBaseURL:   strings.TrimRight(env.GetEnv("STORAGE_PUBLIC_BASE_URL", "/uploads"), "/"),
			LocalDir:        env.GetEnv("STORAGE_LOCAL_DIR", "./uploads"),
		},
		Metrics: MetricsConfig{
			User:     env.GetEnv("METRICS_USER", "admin"),
			Password: env.GetEnv("METRICS_PASSWORD", ""),
		},
		Worker: WorkerConfig{
			QueueWorkers:     env.GetInt("JOB_QUEUE_WORKERS", 2),
			ExpirySweepEvery: env.GetDuration("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
			CounterFlush:     env.GetDuration("COUNTER_FLUSH_INTERVAL", 10*time.Second),
		},
	}
}

// LoadDatabase reads only the database settings. Maintenance commands use it
// so they run without the payment and auth secrets.
func LoadDatabase() (DatabaseConfig, error) {
	cfg := databaseFromEnv()
	return cfg, validateDatabase(cfg)
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Driver:      strings.ToLower(env.GetEnv("DB_DRIVER", "postgres")),
		URL:         env.GetEnv("DATABASE_URL", ""),
		Host:        env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:        env.GetEnv("DB_PORT", ""),
		User:        env.GetEnv("DB_USER", ""),
		Password:    env.GetEnv("DB_PASSWORD", ""),
		Name:        env.GetEnv("DB_NAME", ""),
		SSLMode:     env.GetEnv("DB_SSLMODE", "disable"),
		AutoMigrate: env.GetBool("DB_AUTO_MIGRATE", false),
	}
}

func validateDatabase(cfg DatabaseConfig) error {
	var errs []error
	switch cfg.Driver {
	case "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or mysql, got %q", cfg.Driver))
	}
	if cfg.URL == "" && (cfg.User == "" || cfg.Name == "") {
		errs = append(errs, errors.New("DATABASE_URL or DB_USER/DB_NAME are required"))
	}
	return errors.Join(errs...)
}

func validateStorage(cfg StorageConfig) error {
	var errs []error
	switch cfg.Driver {
	case "local":
	case "s3":
		if cfg.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET_NAME is required when STORAGE_DRIVER=s3"))
		}
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			errs = append(errs, errors.New("S3_ACCESS_KEY_ID/S3_SECRET_ACCESS_KEY are required when STORAGE_DRIVER=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be s3 or local, got %q", cfg.Driver))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

// Validate enforces the startup requirements. Missing persistence credentials
// are always fatal; payment secrets are only required outside development.
func (c *Config) Validate() error {
	var errs []error
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err)
	}

	if !c.IsDev() {
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
		}
	}

	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err)
	}

	if c.Plans.FreeListingCap < 0 {
		errs = append(errs, errors.New("FREE_LISTING_CAP must not be negative"))
	}

	return errors.Join(errs...)
}
