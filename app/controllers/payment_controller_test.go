package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/billing"
	"github.com/americavendas/marketplace/internal/pkg/usercontext"
)

type fakeGateway struct {
	lastReq       billing.SessionRequest
	lastPayload   []byte
	lastSignature string
	sessionResult *billing.SessionResult
	sessionErr    error
	webhookResult *billing.WebhookResult
	webhookErr    error
	lastSessionID string
	lastUserID    string
	status        *billing.PaymentStatus
	history       []billing.PaymentStatus
	lookupErr     error
}

func (g *fakeGateway) CreateSession(ctx context.Context, req billing.SessionRequest) (*billing.SessionResult, error) {
	g.lastReq = req
	return g.sessionResult, g.sessionErr
}

func (g *fakeGateway) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*billing.WebhookResult, error) {
	g.lastPayload = payload
	g.lastSignature = signatureHeader
	return g.webhookResult, g.webhookErr
}

func (g *fakeGateway) PaymentStatus(ctx context.Context, sessionID, userID string) (*billing.PaymentStatus, error) {
	g.lastSessionID, g.lastUserID = sessionID, userID
	return g.status, g.lookupErr
}

func (g *fakeGateway) ListingPayments(ctx context.Context, listingID, userID string) ([]billing.PaymentStatus, error) {
	g.lastUserID = userID
	return g.history, g.lookupErr
}

// withIdentity stands in for the identity middleware.
func withIdentity(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			usercontext.Set(c, usercontext.UserContext{UserID: userID, Email: userID + "@example.com", IsLoggedIn: true})
		}
		return c.Next()
	}
}

func newPaymentApp(g *fakeGateway, userID string) *fiber.App {
	app := fiber.New()
	pc := NewPaymentController(g)
	app.Use(withIdentity(userID))
	app.Post("/api/create-payment-session", pc.HandleCreatePaymentSession)
	app.Post("/api/webhook", pc.HandleWebhook)
	app.Get("/api/v1/payments/:sessionId", pc.HandlePaymentStatus)
	app.Get("/api/v1/listings/:id/payments", pc.HandleListingPayments)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) (int, map[string]interface{}) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestCreatePaymentSessionPaid(t *testing.T) {
	g := &fakeGateway{sessionResult: &billing.SessionResult{SessionID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", Plan: "basic"}}
	app := newPaymentApp(g, "")

	status, body := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":"l1","userId":"u1","plan":"basic"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cs_test_1", body["sessionId"])
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", body["url"])
	assert.Equal(t, billing.SessionRequest{ListingID: "l1", UserID: "u1", Plan: "basic"}, g.lastReq)
}

func TestCreatePaymentSessionFree(t *testing.T) {
	expires := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	g := &fakeGateway{sessionResult: &billing.SessionResult{Plan: "free", URL: "https://vendas.example.com/anuncio/l1?success=true", ExpiresAt: &expires}}
	app := newPaymentApp(g, "")

	status, body := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":"l1","userId":"u1","plan":"free"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "free", body["plan"])
	assert.Equal(t, "2026-02-06T12:00:00Z", body["expiresAt"])
	assert.NotContains(t, body, "sessionId")
}

func TestCreatePaymentSessionUsesCallerIdentity(t *testing.T) {
	g := &fakeGateway{sessionResult: &billing.SessionResult{SessionID: "cs_test_2", URL: "u"}}
	app := newPaymentApp(g, "caller-1")

	status, _ := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":"l1"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "caller-1", g.lastReq.UserID)

	g.lastReq = billing.SessionRequest{}
	status, body := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":"l1","userId":"someone-else"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
	assert.Empty(t, g.lastReq.ListingID, "gateway must not be called")
}

func TestCreatePaymentSessionErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperrors.Validation("invalid payment session request"), http.StatusBadRequest, "validation_error", "invalid payment session request"},
		{"quota", apperrors.QuotaExceeded("free listing limit reached"), http.StatusBadRequest, "quota_exceeded", "free listing limit reached"},
		{"not found", apperrors.NotFound("listing"), http.StatusNotFound, "not_found", "listing not found"},
		{"provider", apperrors.Provider(errors.New("stripe: 503"), "create checkout session"), http.StatusInternalServerError, "provider_error", "payment provider unavailable, please retry"},
		{"unclassified", errors.New("connection reset"), http.StatusInternalServerError, "persistence_error", "internal error, please retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newPaymentApp(&fakeGateway{sessionErr: tt.err}, "")
			status, body := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":"l1","userId":"u1"}`)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestCreatePaymentSessionRejectsMalformedBody(t *testing.T) {
	g := &fakeGateway{}
	app := newPaymentApp(g, "")

	status, body := doJSON(t, app, http.MethodPost, "/api/create-payment-session", `{"listingId":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	g := &fakeGateway{webhookResult: &billing.WebhookResult{EventID: "evt_1", Outcome: billing.OutcomePublished}}
	app := newPaymentApp(g, "")

	payload := `{"id":"evt_1","type":"checkout.session.completed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	status, body := decodeBody(t, resp)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.Equal(t, "published", body["outcome"])
	assert.Equal(t, payload, string(g.lastPayload))
	assert.Equal(t, "t=1,v1=abc", g.lastSignature)
}

func TestWebhookSignatureFailure(t *testing.T) {
	g := &fakeGateway{webhookErr: apperrors.Signature(errors.New("no signatures found"))}
	app := newPaymentApp(g, "")

	status, body := doJSON(t, app, http.MethodPost, "/api/webhook", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "signature_error", body["error"])
	assert.Equal(t, "invalid webhook signature", body["message"])
}

func TestPaymentStatusForCaller(t *testing.T) {
	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := &fakeGateway{status: &billing.PaymentStatus{
		SessionID: "cs_test_1", ListingID: "l1", Plan: "basic",
		Amount: decimal.RequireFromString("9.90"), Currency: "brl",
		Status: "completed", CompletedAt: &completed, ListingStatus: "published",
	}}
	app := newPaymentApp(g, "u1")

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/payments/cs_test_1", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cs_test_1", g.lastSessionID)
	assert.Equal(t, "u1", g.lastUserID)
	assert.Equal(t, "l1", body["listingId"])
	assert.Equal(t, "basic", body["plan"])
	assert.Equal(t, "9.9", body["amount"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "published", body["listingStatus"])
}

func TestPaymentStatusNotFound(t *testing.T) {
	g := &fakeGateway{lookupErr: apperrors.NotFound("payment")}
	app := newPaymentApp(g, "u2")

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/payments/cs_other", "")

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestListingPaymentsHistory(t *testing.T) {
	g := &fakeGateway{history: []billing.PaymentStatus{
		{SessionID: "cs_1", ListingID: "l1", Status: "expired"},
		{SessionID: "cs_2", ListingID: "l1", Status: "pending"},
	}}
	app := newPaymentApp(g, "u1")

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/listings/l1/payments", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1", g.lastUserID)
	items, ok := body["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}
