package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

// IdentityMiddleware authenticates requests carrying an identity-provider
// access token. Requests without a token continue anonymously; a token that
// fails verification is rejected.
func IdentityMiddleware(cfg config.AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" {
			return c.Next()
		}

		uc, err := ParseIdentityToken(cfg, raw)
		if err != nil {
			log.Warnf("[Auth] rejected token: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid access token"})
		}

		usercontext.Set(c, *uc)
		return c.Next()
	}
}

// ParseIdentityToken verifies an HS256 access token and maps its claims.
func ParseIdentityToken(cfg config.AuthConfig, raw string) (*usercontext.UserContext, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	uc := &usercontext.UserContext{
		UserID:     sub,
		Email:      stringClaim(claims, "email"),
		Phone:      stringClaim(claims, "phone"),
		IsLoggedIn: true,
	}
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		for _, key := range []string{"name", "full_name"} {
			if v, ok := meta[key].(string); ok && v != "" {
				uc.Name = v
				break
			}
		}
		if uc.Phone == "" {
			if v, ok := meta["phone"].(string); ok {
				uc.Phone = v
			}
		}
	}
	return uc, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func extractBearerToken(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
