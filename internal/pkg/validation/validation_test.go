package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
)

type sample struct {
	Title    string           `json:"title" validate:"required,min=3"`
	Price    decimal.Decimal  `json:"price" validate:"price"`
	MaxPrice *decimal.Decimal `json:"max_price" validate:"omitempty,gt=0"`
	Category string           `json:"category" validate:"required,listing_category"`
	Plan     string           `json:"plan" validate:"plan"`
}

func TestStructValid(t *testing.T) {
	v := New()
	err := Struct(v, sample{Title: "Casa X", Price: decimal.NewFromInt(100000), Category: "casa"}, "invalid")
	assert.NoError(t, err)
}

func TestStructDetails(t *testing.T) {
	v := New()
	negative := decimal.NewFromInt(-1)
	err := Struct(v, sample{Title: "ab", Price: decimal.Zero, MaxPrice: &negative, Category: "boat", Plan: "gold"}, "invalid listing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	details, ok := apperrors.DetailsOf(err).(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at least 3 characters", details["title"])
	assert.Contains(t, details["price"], "must be greater than 0")
	assert.Equal(t, "must be greater than 0", details["max_price"])
	assert.Contains(t, details["category"], "casa")
	assert.Equal(t, "must be one of free, basic, premium", details["plan"])
}

func TestStructRequired(t *testing.T) {
	v := New()
	err := Struct(v, sample{Price: decimal.NewFromInt(1)}, "invalid listing")
	details := apperrors.DetailsOf(err).(map[string]string)
	assert.Equal(t, "is required", details["title"])
	assert.Equal(t, "is required", details["category"])
}

type priceUpdate struct {
	Price *decimal.Decimal `json:"price" validate:"omitnil,price"`
}

func TestPriceRule(t *testing.T) {
	v := New()
	tests := []struct {
		price string
		ok    bool
	}{
		{"0.01", true},
		{"100000.5", true},
		{"9999999999.99", true},
		{"19.90", true},
		{"0", false},
		{"-5", false},
		{"0.004", false},
		{"10.999", false},
		{"10000000000", false},
		{"123456789012345", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			d := decimal.RequireFromString(tt.price)
			assert.Equal(t, tt.ok, ValidPrice(d))

			err := Struct(v, sample{Title: "Casa X", Price: d, Category: "casa"}, "invalid")
			assert.Equal(t, tt.ok, err == nil, "create: %v", err)

			err = Struct(v, priceUpdate{Price: &d}, "invalid")
			assert.Equal(t, tt.ok, err == nil, "update: %v", err)
		})
	}

	assert.NoError(t, Struct(v, priceUpdate{}, "invalid"))
}
