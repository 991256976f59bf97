package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/app/repository"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/config"
	"github.com/americavendas/marketplace/internal/pkg/plans"
	"github.com/americavendas/marketplace/internal/pkg/testutil"
)

const (
	webhookSecret = "whsec_test_secret"
	frontendURL   = "https://vendas.example.com"
	ownerID       = "2b1f0c5e-7d1a-4c8e-9f3a-000000000001"
)

// fakeCheckout verifies webhooks like Stripe does but never calls the API.
type fakeCheckout struct {
	*StripeProvider
	mu      sync.Mutex
	calls   []CheckoutParams
	err     error
	counter int
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	f.counter++
	id := fmt.Sprintf("cs_test_%d", f.counter)
	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

type fixture struct {
	db       *gorm.DB
	repos    *repository.Repositories
	provider *fakeCheckout
	gateway  *Gateway
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:    db,
		repos: repository.NewRepositories(db),
		provider: &fakeCheckout{
			StripeProvider: NewStripeProvider(config.StripeConfig{SecretKey: "sk_test_x", WebhookSecret: webhookSecret}),
		},
		clock: testutil.NewClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.gateway = NewGateway(Deps{
		Repos:    f.repos,
		Events:   NewEventRepository(db),
		Provider: f.provider,
		Catalog: plans.NewCatalog(config.PlanConfig{
			Currency:           "brl",
			BasicAmountCents:   990,
			PremiumAmountCents: 4990,
			FreeListingCap:     5,
		}),
		FrontendURL: frontendURL + "/",
		Now:         f.clock.Now,
	})
	return f
}

func (f *fixture) listing(t *testing.T, mutate func(l *models.Listing)) *models.Listing {
	t.Helper()
	ctx := context.Background()
	_, err := f.repos.User.EnsureExists(ctx, &models.User{ID: ownerID, Email: "joao@example.com"})
	require.NoError(t, err)

	l := &models.Listing{
		UserID:      ownerID,
		Title:       "Casa X",
		Description: "Três quartos",
		Price:       decimal.NewFromInt(100000),
		Category:    "casa",
	}
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, f.repos.Listing.Create(ctx, l))
	return l
}

func (f *fixture) reload(t *testing.T, id string) *models.Listing {
	t.Helper()
	l, err := f.repos.Listing.GetByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

type sessionEvent struct {
	id            string
	typ           string
	sessionID     string
	metadata      map[string]string
	amountTotal   int64
	paymentStatus string
	created       time.Time
}

func (e sessionEvent) payload() []byte {
	var meta []string
	for k, v := range e.metadata {
		meta = append(meta, fmt.Sprintf("%q:%q", k, v))
	}
	status := e.paymentStatus
	if status == "" {
		status = "paid"
	}
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2023-10-16",
  "created": %d,
  "type": %q,
  "data": {
    "object": {
      "id": %q,
      "object": "checkout.session",
      "amount_total": %d,
      "currency": "brl",
      "payment_status": %q,
      "metadata": {%s}
    }
  }
}`, e.id, e.created.Unix(), e.typ, e.sessionID, e.amountTotal, status, strings.Join(meta, ",")))
}

func sign(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  webhookSecret,
	}).Header
}

func (f *fixture) deliver(t *testing.T, e sessionEvent) (*WebhookResult, error) {
	t.Helper()
	if e.created.IsZero() {
		e.created = f.clock.Now()
	}
	p := e.payload()
	return f.gateway.HandleWebhook(context.Background(), p, sign(p))
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	_, err := f.gateway.CreateSession(ctx, SessionRequest{UserID: ownerID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "gold"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Empty(t, f.provider.calls)
}

func TestCreateSessionNotOwnedNeverCallsProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	_, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: "someone-else", Plan: "premium"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.gateway.CreateSession(ctx, SessionRequest{ListingID: "missing", UserID: ownerID, Plan: "basic"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Empty(t, f.provider.calls)
	assert.Equal(t, int64(0), f.count(t, &models.ListingPayment{}))
}

func TestCreateSessionPaidDefaultsToBasic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Contains(t, res.URL, "checkout.stripe.com")

	require.Len(t, f.provider.calls, 1)
	call := f.provider.calls[0]
	assert.Equal(t, "basic", call.Plan)
	assert.Equal(t, int64(990), call.AmountCents)
	assert.Equal(t, "brl", call.Currency)
	assert.Empty(t, call.PriceID)
	assert.Equal(t, frontendURL+"/anuncio/"+l.ID+"?success=true&session_id={CHECKOUT_SESSION_ID}", call.SuccessURL)
	assert.Equal(t, frontendURL+"/anuncio/"+l.ID+"?canceled=true", call.CancelURL)
	assert.Equal(t, map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "basic"}, call.Metadata)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusPendingPayment, got.Status)
	assert.Equal(t, "cs_test_1", got.PaymentSessionID)
	assert.False(t, got.IsPaid)

	payment, err := f.repos.Payment.GetBySessionID(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.True(t, decimal.RequireFromString("9.90").Equal(payment.Amount))
	assert.Equal(t, "basic", payment.Plan)
}

func TestCreateSessionProviderFailureLeavesListing(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("stripe: connection refused")
	l := f.listing(t, nil)

	_, err := f.gateway.CreateSession(context.Background(), SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "premium"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProvider, apperrors.KindOf(err))
	assert.Equal(t, "payment provider unavailable, please retry", apperrors.PublicMessage(err))

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusDraft, got.Status)
	assert.Empty(t, got.PaymentSessionID)
	assert.Equal(t, int64(0), f.count(t, &models.ListingPayment{}))
}

func TestCreateSessionFreePublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "FREE"})
	require.NoError(t, err)
	assert.Equal(t, "free", res.Plan)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, frontendURL+"/anuncio/"+l.ID+"?success=true", res.URL)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, res.ExpiresAt.Equal(f.clock.Now().Add(plans.FreeDuration)))
	assert.Empty(t, f.provider.calls)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusPublished, got.Status)
	assert.False(t, got.IsPaid)
	assert.Equal(t, "free", got.PlanType)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.After(got.CreatedAt))
	assert.WithinDuration(t, f.clock.Now().Add(5*24*time.Hour), *got.ExpiresAt, time.Second)

	user, err := f.repos.User.GetByID(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.FreeListingsUsed)

	_, err = f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "free"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFreeQuotaExceededAfterFivePublications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l := f.listing(t, nil)
		_, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "free"})
		require.NoError(t, err)
	}

	sixth := f.listing(t, nil)
	_, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: sixth.ID, UserID: ownerID, Plan: "free"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	got := f.reload(t, sixth.ID)
	assert.Equal(t, models.ListingStatusDraft, got.Status)
	assert.Nil(t, got.ExpiresAt)
	assert.Empty(t, f.provider.calls)
}

func TestFreeQuotaCountsHistoricalListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// rows that predate the users mirror
	for i := 0; i < 5; i++ {
		expires := f.clock.Now().Add(time.Duration(i-2) * 24 * time.Hour)
		require.NoError(t, f.repos.Listing.Create(ctx, &models.Listing{
			UserID: "legacy-user", Title: "Terreno", Description: "Lote", Price: decimal.NewFromInt(5000),
			Category: "terreno", Status: models.ListingStatusPublished, PlanType: "free", ExpiresAt: &expires,
		}))
	}
	draft := &models.Listing{UserID: "legacy-user", Title: "Carro", Description: "Usado", Price: decimal.NewFromInt(30000), Category: "carro"}
	require.NoError(t, f.repos.Listing.Create(ctx, draft))

	_, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: draft.ID, UserID: "legacy-user", Plan: "free"})
	assert.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
	assert.Equal(t, models.ListingStatusDraft, f.reload(t, draft.ID).Status)
}

func TestWebhookCompletedPublishesPaidListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "basic"})
	require.NoError(t, err)

	f.clock.Advance(3 * time.Minute)
	out, err := f.deliver(t, sessionEvent{
		id: "evt_1", typ: EventSessionCompleted, sessionID: res.SessionID, amountTotal: 990,
		metadata: map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "basic"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Outcome)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusPublished, got.Status)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "basic", got.PlanType)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, f.clock.Now().Add(30*24*time.Hour), *got.ExpiresAt, time.Second)
	assert.True(t, got.ExpiresAt.After(got.CreatedAt))

	payment, err := f.repos.Payment.GetBySessionID(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.NotNil(t, payment.CompletedAt)
	assert.True(t, decimal.RequireFromString("9.90").Equal(payment.Amount))
}

func TestWebhookCompletedWithoutPriorPaymentRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	out, err := f.deliver(t, sessionEvent{
		id: "evt_premium", typ: EventSessionCompleted, sessionID: "cs_live_L1", amountTotal: 4990,
		metadata: map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "premium"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Outcome)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusPublished, got.Status)
	assert.True(t, got.IsPaid)
	assert.WithinDuration(t, f.clock.Now().Add(365*24*time.Hour), *got.ExpiresAt, time.Second)

	payments, err := f.repos.Payment.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)
	assert.Equal(t, "premium", payments[0].Plan)
	assert.True(t, decimal.RequireFromString("49.90").Equal(payments[0].Amount))
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	e := sessionEvent{
		id: "evt_dup", typ: EventSessionCompleted, sessionID: "cs_dup", amountTotal: 4990,
		metadata: map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "premium"},
		created:  f.clock.Now(),
	}
	_, err := f.deliver(t, e)
	require.NoError(t, err)
	first := f.reload(t, l.ID)

	f.clock.Advance(time.Hour)
	out, err := f.deliver(t, e)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	// a different event for the same session, e.g. async success after completion
	e.id, e.typ = "evt_dup_async", EventSessionAsyncPaymentOK
	out, err = f.deliver(t, e)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out.Outcome)

	second := f.reload(t, l.ID)
	assert.True(t, first.ExpiresAt.Equal(*second.ExpiresAt))
	assert.Equal(t, first.Status, second.Status)

	payments, err := f.repos.Payment.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, decimal.RequireFromString("49.90").Equal(payments[0].Amount))
	assert.Equal(t, int64(2), f.count(t, &models.PaymentWebhookEvent{}))
}

func TestWebhookBadSignatureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	p := sessionEvent{
		id: "evt_forged", typ: EventSessionCompleted, sessionID: "cs_forged", amountTotal: 4990,
		metadata: map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "premium"},
		created:  f.clock.Now(),
	}.payload()

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: p, Secret: "whsec_wrong"}).Header
	for _, header := range []string{"", "t=123,v1=deadbeef", forged} {
		_, err := f.gateway.HandleWebhook(ctx, p, header)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrSignature)
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}

	assert.Equal(t, int64(0), f.count(t, &models.PaymentWebhookEvent{}))
	assert.Equal(t, int64(0), f.count(t, &models.ListingPayment{}))
	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusDraft, got.Status)
	assert.False(t, got.IsPaid)
}

func TestWebhookRejectsIncompleteMetadata(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, nil)

	out, err := f.deliver(t, sessionEvent{
		id: "evt_nometa", typ: EventSessionCompleted, sessionID: "cs_nometa", amountTotal: 990,
		metadata: map[string]string{"listingId": l.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out.Outcome)

	var ev models.PaymentWebhookEvent
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_nometa").First(&ev).Error)
	assert.NotNil(t, ev.ProcessedAt)
	assert.Contains(t, ev.ProcessingError, "metadata")
	assert.Equal(t, models.ListingStatusDraft, f.reload(t, l.ID).Status)
}

func TestWebhookRejectsForeignListing(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, nil)

	out, err := f.deliver(t, sessionEvent{
		id: "evt_foreign", typ: EventSessionCompleted, sessionID: "cs_foreign", amountTotal: 990,
		metadata: map[string]string{"listingId": l.ID, "userId": "intruder", "plan": "basic"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out.Outcome)
	assert.Equal(t, models.ListingStatusDraft, f.reload(t, l.ID).Status)
	assert.Equal(t, int64(0), f.count(t, &models.ListingPayment{}))
}

func TestWebhookExpiredSessionRevertsToDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "premium"})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	out, err := f.deliver(t, sessionEvent{id: "evt_exp", typ: EventSessionExpired, sessionID: res.SessionID, paymentStatus: "unpaid"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, out.Outcome)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusDraft, got.Status)
	assert.Empty(t, got.PaymentSessionID)

	payment, err := f.repos.Payment.GetBySessionID(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, payment.Status)
}

func TestWebhookExpiryOfOlderSessionKeepsNewerCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	first, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "basic"})
	require.NoError(t, err)
	second, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "premium"})
	require.NoError(t, err)

	_, err = f.deliver(t, sessionEvent{id: "evt_exp_old", typ: EventSessionExpired, sessionID: first.SessionID})
	require.NoError(t, err)

	got := f.reload(t, l.ID)
	assert.Equal(t, models.ListingStatusPendingPayment, got.Status)
	assert.Equal(t, second.SessionID, got.PaymentSessionID)
}

func TestWebhookCompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "basic"})
	require.NoError(t, err)
	meta := map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "basic"}

	_, err = f.deliver(t, sessionEvent{id: "evt_ok", typ: EventSessionCompleted, sessionID: res.SessionID, amountTotal: 990, metadata: meta})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	out, err := f.deliver(t, sessionEvent{id: "evt_late_exp", typ: EventSessionExpired, sessionID: res.SessionID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Outcome)

	payment, err := f.repos.Payment.GetBySessionID(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, models.ListingStatusPublished, f.reload(t, l.ID).Status)
}

func TestWebhookStaleEventIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "basic"})
	require.NoError(t, err)

	failedAt := f.clock.Now().Add(10 * time.Minute)
	_, err = f.deliver(t, sessionEvent{id: "evt_fail", typ: EventSessionAsyncPaymentFailed, sessionID: res.SessionID, created: failedAt})
	require.NoError(t, err)

	out, err := f.deliver(t, sessionEvent{id: "evt_old_exp", typ: EventSessionExpired, sessionID: res.SessionID, created: failedAt.Add(-5 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Outcome)

	payment, err := f.repos.Payment.GetBySessionID(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "evt_fail", payment.LastEventID)
}

func TestWebhookUnpaidCompletionWaitsForAsyncPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.listing(t, nil)

	res, err := f.gateway.CreateSession(ctx, SessionRequest{ListingID: l.ID, UserID: ownerID, Plan: "basic"})
	require.NoError(t, err)
	meta := map[string]string{"listingId": l.ID, "userId": ownerID, "plan": "basic"}

	out, err := f.deliver(t, sessionEvent{id: "evt_boleto", typ: EventSessionCompleted, sessionID: res.SessionID, metadata: meta, paymentStatus: "unpaid"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaiting, out.Outcome)
	assert.Equal(t, models.ListingStatusPendingPayment, f.reload(t, l.ID).Status)

	out, err = f.deliver(t, sessionEvent{id: "evt_boleto_paid", typ: EventSessionAsyncPaymentOK, sessionID: res.SessionID, metadata: meta, amountTotal: 990})
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, out.Outcome)
	assert.Equal(t, models.ListingStatusPublished, f.reload(t, l.ID).Status)
}

func TestWebhookIgnoresUnknownTypes(t *testing.T) {
	f := newFixture(t)

	out, err := f.deliver(t, sessionEvent{id: "evt_other", typ: "customer.created", sessionID: "cus_1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out.Outcome)
	assert.Equal(t, int64(1), f.count(t, &models.PaymentWebhookEvent{}))
}
