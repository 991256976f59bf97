package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/billing"
	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

// PaymentGateway publishes listings through plans and applies provider webhooks.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req billing.SessionRequest) (*billing.SessionResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*billing.WebhookResult, error)
	PaymentStatus(ctx context.Context, sessionID, userID string) (*billing.PaymentStatus, error)
	ListingPayments(ctx context.Context, listingID, userID string) ([]billing.PaymentStatus, error)
}

// PaymentController handles checkout sessions and provider webhooks
type PaymentController struct {
	gateway PaymentGateway
}

// NewPaymentController creates a new payment controller
func NewPaymentController(gateway PaymentGateway) *PaymentController {
	return &PaymentController{gateway: gateway}
}

// HandleCreatePaymentSession starts a checkout for a paid plan or publishes
// immediately on the free plan. When the request carries an identity, the
// session is created for that user.
func (pc *PaymentController) HandleCreatePaymentSession(c *fiber.Ctx) error {
	var req billing.SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if uc := usercontext.GetUserContext(c); uc.IsLoggedIn {
		if req.UserID == "" {
			req.UserID = uc.UserID
		} else if req.UserID != uc.UserID {
			return respondError(c, apperrors.NotFound("listing"))
		}
	}

	result, err := pc.gateway.CreateSession(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	if result.SessionID == "" {
		return c.JSON(fiber.Map{
			"plan":      result.Plan,
			"url":       result.URL,
			"expiresAt": result.ExpiresAt,
		})
	}
	return c.JSON(fiber.Map{
		"sessionId": result.SessionID,
		"url":       result.URL,
	})
}

// HandleWebhook verifies and applies a provider delivery. The raw body is
// passed through untouched because the signature covers its exact bytes.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	result, err := pc.gateway.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"received": true,
		"outcome":  result.Outcome,
	})
}

// HandlePaymentStatus reports a checkout session of the caller, used by the
// success page after the provider redirect.
func (pc *PaymentController) HandlePaymentStatus(c *fiber.Ctx) error {
	status, err := pc.gateway.PaymentStatus(c.UserContext(), c.Params("sessionId"), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

// HandleListingPayments lists the checkout history of one of the caller's listings.
func (pc *PaymentController) HandleListingPayments(c *fiber.Ctx) error {
	payments, err := pc.gateway.ListingPayments(c.UserContext(), c.Params("id"), usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": payments})
}
