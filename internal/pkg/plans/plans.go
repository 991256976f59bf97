package plans

import (
	"strings"
	"time"

	"github.com/americavendas/marketplace/internal/pkg/config"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// Default is used when a session request names no plan.
const Default = PlanBasic

// Visibility durations per plan.
const (
	FreeDuration    = 5 * 24 * time.Hour
	BasicDuration   = 30 * 24 * time.Hour
	PremiumDuration = 365 * 24 * time.Hour
)

// Spec describes how a plan is sold and how long it keeps a listing public.
type Spec struct {
	Plan        Plan
	Name        string
	Duration    time.Duration
	AmountCents int64
	Currency    string
	PriceID     string // provider price identifier; empty means inline price data
}

// IsPaid reports whether the plan goes through the checkout provider.
func (s Spec) IsPaid() bool {
	return s.Plan != PlanFree
}

// Catalog is the canonical plan table.
type Catalog struct {
	specs   map[Plan]Spec
	freeCap int
}

// NewCatalog builds the plan table from config.
func NewCatalog(cfg config.PlanConfig) *Catalog {
	currency := cfg.Currency
	if currency == "" {
		currency = "brl"
	}
	return &Catalog{
		freeCap: cfg.FreeListingCap,
		specs: map[Plan]Spec{
			PlanFree: {
				Plan:     PlanFree,
				Name:     "Gratuito",
				Duration: FreeDuration,
				Currency: currency,
			},
			PlanBasic: {
				Plan:        PlanBasic,
				Name:        "Básico",
				Duration:    BasicDuration,
				AmountCents: cfg.BasicAmountCents,
				Currency:    currency,
				PriceID:     strings.TrimSpace(cfg.BasicPriceID),
			},
			PlanPremium: {
				Plan:        PlanPremium,
				Name:        "Premium",
				Duration:    PremiumDuration,
				AmountCents: cfg.PremiumAmountCents,
				Currency:    currency,
				PriceID:     strings.TrimSpace(cfg.PremiumPriceID),
			},
		},
	}
}

// Lookup resolves a plan name. An empty name resolves to Default.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	p := Normalize(name)
	if p == "" {
		p = Default
	}
	spec, ok := c.specs[p]
	return spec, ok
}

// FreeCap is the number of free publications a user may make.
func (c *Catalog) FreeCap() int {
	return c.freeCap
}

// Normalize lowercases and trims a plan name.
func Normalize(name string) Plan {
	return Plan(strings.ToLower(strings.TrimSpace(name)))
}

// Valid reports whether name is a known plan.
func Valid(name string) bool {
	switch Normalize(name) {
	case PlanFree, PlanBasic, PlanPremium:
		return true
	default:
		return false
	}
}

// DurationFor returns the visibility duration of a known plan.
func DurationFor(p Plan) (time.Duration, bool) {
	switch Normalize(string(p)) {
	case PlanFree:
		return FreeDuration, true
	case PlanBasic:
		return BasicDuration, true
	case PlanPremium:
		return PremiumDuration, true
	default:
		return 0, false
	}
}
