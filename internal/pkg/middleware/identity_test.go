package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

var authCfg = config.AuthConfig{JWTSecret: "super-secret-jwt-key", Issuer: "https://auth.example.com/auth/v1"}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"email": "maria@example.com",
		"iss":   authCfg.Issuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]interface{}{
			"full_name": "Maria Souza",
			"phone":     "+55 11 99999-0000",
		},
	}
}

func TestParseIdentityToken(t *testing.T) {
	uc, err := ParseIdentityToken(authCfg, signToken(t, authCfg.JWTSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", uc.UserID)
	assert.Equal(t, "maria@example.com", uc.Email)
	assert.Equal(t, "Maria Souza", uc.Name)
	assert.Equal(t, "+55 11 99999-0000", uc.Phone)
	assert.True(t, uc.IsLoggedIn)
}

func TestParseIdentityTokenRejects(t *testing.T) {
	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noExp := validClaims()
	delete(noExp, "exp")

	otherIssuer := validClaims()
	otherIssuer["iss"] = "https://evil.example.com"

	noSub := validClaims()
	delete(noSub, "sub")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "another-secret", validClaims())},
		{"expired", signToken(t, authCfg.JWTSecret, expired)},
		{"no expiry", signToken(t, authCfg.JWTSecret, noExp)},
		{"other issuer", signToken(t, authCfg.JWTSecret, otherIssuer)},
		{"no subject", signToken(t, authCfg.JWTSecret, noSub)},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIdentityToken(authCfg, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestIdentityMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(IdentityMiddleware(authCfg))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(usercontext.GetUserID(c))
	})
	app.Get("/private", RequireAPIAuth, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/private", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, authCfg.JWTSecret, validClaims()))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
