package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Validation("title is required"), want: http.StatusBadRequest},
		{name: "quota", err: QuotaExceeded("free listing limit reached"), want: http.StatusBadRequest},
		{name: "signature", err: Signature(errors.New("bad header")), want: http.StatusBadRequest},
		{name: "not found", err: NotFound("listing"), want: http.StatusNotFound},
		{name: "unauthorized", err: Unauthorized("missing token"), want: http.StatusUnauthorized},
		{name: "provider", err: Provider(errors.New("timeout"), "checkout failed"), want: http.StatusInternalServerError},
		{name: "persistence", err: Persistence(errors.New("db down"), "insert failed"), want: http.StatusInternalServerError},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("create session: %w", NotFound("listing")), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", QuotaExceeded("limit"))
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrValidation))

	cause := errors.New("connection refused")
	wrapped := Persistence(cause, "update listing")
	assert.True(t, errors.Is(wrapped, ErrPersistence))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Provider(errors.New("sk_live secret leaked in message"), "create checkout session")
	assert.NotContains(t, PublicMessage(err), "sk_live")
	assert.Equal(t, "listing not found", PublicMessage(NotFound("listing")))
	assert.Equal(t, "internal error, please retry", PublicMessage(errors.New("raw")))
}

func TestDetails(t *testing.T) {
	details := map[string]string{"price": "must be greater than 0"}
	err := Validation("invalid listing").WithDetails(details)
	assert.Equal(t, details, DetailsOf(fmt.Errorf("wrap: %w", err)))
	assert.Nil(t, DetailsOf(errors.New("plain")))
}
