package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/americavendas/marketplace/app/models"
	"github.com/americavendas/marketplace/app/repository"
	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/cache"
	"github.com/americavendas/marketplace/internal/pkg/plans"
	"github.com/americavendas/marketplace/internal/pkg/validation"
)

// Deps are the collaborators of the payment gateway.
type Deps struct {
	Repos       *repository.Repositories
	Events      EventRepository
	Provider    CheckoutProvider
	Catalog     *plans.Catalog
	Cache       *cache.Store
	FrontendURL string
	Now         func() time.Time
	Validate    *validator.Validate
}

// Gateway turns plan choices into published listings, either directly for
// the free plan or through a hosted checkout and its webhook.
type Gateway struct {
	repos       *repository.Repositories
	events      EventRepository
	provider    CheckoutProvider
	catalog     *plans.Catalog
	cache       *cache.Store
	frontendURL string
	now         func() time.Time
	validate    *validator.Validate
}

func NewGateway(d Deps) *Gateway {
	g := &Gateway{
		repos:       d.Repos,
		events:      d.Events,
		provider:    d.Provider,
		catalog:     d.Catalog,
		cache:       d.Cache,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		now:         d.Now,
		validate:    d.Validate,
	}
	if g.now == nil {
		g.now = func() time.Time { return time.Now().UTC() }
	}
	if g.validate == nil {
		g.validate = validation.New()
	}
	return g
}

// CreateSession publishes a listing under the free plan or opens a checkout
// session for a paid plan.
func (g *Gateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	req.ListingID = strings.TrimSpace(req.ListingID)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validation.Struct(g.validate, req, "invalid payment session request"); err != nil {
		return nil, err
	}
	spec, ok := g.catalog.Lookup(req.Plan)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unknown plan %q", req.Plan))
	}

	listing, err := g.repos.Listing.GetOwned(ctx, req.ListingID, req.UserID)
	if err != nil {
		return nil, err
	}

	if !spec.IsPaid() {
		return g.publishFree(ctx, req, spec)
	}
	return g.startCheckout(ctx, listing, spec)
}

func (g *Gateway) publishFree(ctx context.Context, req SessionRequest, spec plans.Spec) (*SessionResult, error) {
	now := g.now()
	var expiresAt time.Time

	err := g.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.User.EnsureExists(ctx, &models.User{ID: req.UserID}); err != nil {
			return err
		}
		listing, err := tx.Listing.GetOwnedForUpdate(ctx, req.ListingID, req.UserID)
		if err != nil {
			return err
		}
		if listing.IsPubliclyVisible(now) {
			return apperrors.Validation("listing is already published")
		}

		ok, err := tx.User.ConsumeFreeListing(ctx, req.UserID, g.catalog.FreeCap())
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.QuotaExceeded(fmt.Sprintf("free listing limit of %d reached, choose a paid plan", g.catalog.FreeCap()))
		}

		listing.Publish(string(spec.Plan), false, now, spec.Duration)
		expiresAt = *listing.ExpiresAt
		return tx.Listing.UpdateFields(ctx, listing.ID, map[string]interface{}{
			"status":             listing.Status,
			"is_paid":            false,
			"plan_type":          listing.PlanType,
			"expires_at":         listing.ExpiresAt,
			"published_at":       listing.PublishedAt,
			"payment_session_id": "",
		})
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindPersistence {
			log.Errorf("[Billing] free publication of %s: %v", req.ListingID, err)
		}
		return nil, err
	}

	g.invalidate(ctx, req.ListingID)
	log.Infof("[Billing] listing %s published on the free plan until %s", req.ListingID, expiresAt.Format(time.RFC3339))
	return &SessionResult{
		URL:       g.successURL(req.ListingID),
		Plan:      string(spec.Plan),
		ExpiresAt: &expiresAt,
	}, nil
}

func (g *Gateway) startCheckout(ctx context.Context, listing *models.Listing, spec plans.Spec) (*SessionResult, error) {
	session, err := g.provider.CreateCheckoutSession(ctx, CheckoutParams{
		ListingID:   listing.ID,
		UserID:      listing.UserID,
		Plan:        string(spec.Plan),
		Title:       fmt.Sprintf("%s (%s)", listing.Title, spec.Name),
		Description: listing.Description,
		PriceID:     spec.PriceID,
		AmountCents: spec.AmountCents,
		Currency:    spec.Currency,
		SuccessURL:  g.checkoutSuccessURL(listing.ID),
		CancelURL:   g.cancelURL(listing.ID),
		Metadata: map[string]string{
			"listingId": listing.ID,
			"userId":    listing.UserID,
			"plan":      string(spec.Plan),
		},
	})
	if err != nil {
		log.Errorf("[Billing] checkout session for %s: %v", listing.ID, err)
		return nil, apperrors.Provider(err, "could not create checkout session")
	}

	err = g.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		locked, err := tx.Listing.GetForUpdate(ctx, listing.ID)
		if err != nil {
			return err
		}
		fields := map[string]interface{}{"payment_session_id": session.ID}
		if locked.Status == models.ListingStatusDraft || locked.Status == models.ListingStatusExpired {
			fields["status"] = models.ListingStatusPendingPayment
		}
		if err := tx.Listing.UpdateFields(ctx, listing.ID, fields); err != nil {
			return err
		}
		return tx.Payment.Create(ctx, &models.ListingPayment{
			ListingID:       listing.ID,
			UserID:          listing.UserID,
			StripeSessionID: session.ID,
			Plan:            string(spec.Plan),
			Amount:          decimal.New(spec.AmountCents, -2),
			Currency:        spec.Currency,
			Status:          models.PaymentStatusPending,
		})
	})
	if err != nil {
		log.Errorf("[Billing] record checkout session %s for %s: %v", session.ID, listing.ID, err)
		return nil, err
	}

	g.invalidate(ctx, listing.ID)
	log.Infof("[Billing] checkout session %s opened for %s (%s)", session.ID, listing.ID, spec.Plan)
	return &SessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// rejection marks an event that was understood but cannot be applied. It is
// acknowledged so the provider stops retrying.
type rejection struct {
	reason string
}

func (r *rejection) Error() string {
	return r.reason
}

func reject(format string, args ...interface{}) error {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

// HandleWebhook verifies and applies one provider delivery. Nothing is
// written before the signature checks out.
func (g *Gateway) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	ev, err := g.provider.ParseEvent(payload, signatureHeader)
	if err != nil {
		log.Warnf("[Billing] webhook signature rejected: %v", err)
		return nil, apperrors.Signature(err)
	}
	result := &WebhookResult{EventID: ev.ID, EventType: ev.Type}

	created, stored, err := g.events.CreateWebhookEventIfNotExists(ctx, &models.PaymentWebhookEvent{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		log.Errorf("[Billing] record webhook %s: %v", ev.ID, err)
		return nil, err
	}
	if !created && stored.Done() {
		log.Infof("[Billing] webhook %s already processed", ev.ID)
		result.Duplicate = true
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	outcome, procErr := g.apply(ctx, ev)

	var rej *rejection
	switch {
	case procErr == nil:
		result.Outcome = outcome
	case errors.As(procErr, &rej):
		log.Warnf("[Billing] webhook %s (%s) rejected: %s", ev.ID, ev.Type, rej.reason)
		result.Outcome = OutcomeRejected
	default:
		log.Errorf("[Billing] webhook %s (%s) failed: %v", ev.ID, ev.Type, procErr)
	}

	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := g.events.MarkWebhookProcessed(ctx, stored.ID, msg, g.now()); err != nil {
		log.Errorf("[Billing] mark webhook %s processed: %v", ev.ID, err)
		if procErr == nil {
			return nil, err
		}
	}

	if procErr != nil && rej == nil {
		return nil, procErr
	}
	return result, nil
}

func (g *Gateway) apply(ctx context.Context, ev *Event) (string, error) {
	switch ev.Type {
	case EventSessionCompleted, EventSessionAsyncPaymentOK:
		return g.applyCompleted(ctx, ev)
	case EventSessionExpired:
		return g.applyClosed(ctx, ev, models.PaymentStatusExpired)
	case EventSessionAsyncPaymentFailed:
		return g.applyClosed(ctx, ev, models.PaymentStatusFailed)
	default:
		log.Infof("[Billing] ignoring webhook event type %s", ev.Type)
		return OutcomeIgnored, nil
	}
}

func (g *Gateway) applyCompleted(ctx context.Context, ev *Event) (string, error) {
	s := ev.Session
	if s == nil || s.ID == "" {
		return "", reject("event carries no checkout session")
	}
	// Delayed methods (boleto) complete the session before the money arrives.
	if ev.Type == EventSessionCompleted && s.PaymentStatus == "unpaid" {
		return OutcomeAwaiting, nil
	}

	listingID := strings.TrimSpace(s.Metadata["listingId"])
	userID := strings.TrimSpace(s.Metadata["userId"])
	planName := strings.TrimSpace(s.Metadata["plan"])
	if listingID == "" || userID == "" || planName == "" {
		return "", reject("session %s metadata must carry listingId, userId and plan", s.ID)
	}
	spec, ok := g.catalog.Lookup(planName)
	if !ok || !spec.IsPaid() {
		return "", reject("session %s names unknown paid plan %q", s.ID, planName)
	}

	now := g.now()
	outcome := OutcomePublished
	err := g.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		listing, err := tx.Listing.GetForUpdate(ctx, listingID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return reject("listing %s of session %s not found", listingID, s.ID)
		}
		if err != nil {
			return err
		}
		if listing.UserID != userID {
			return reject("listing %s is not owned by %s", listingID, userID)
		}

		payment, err := tx.Payment.GetBySessionIDForUpdate(ctx, s.ID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			payment = &models.ListingPayment{
				ListingID:       listingID,
				UserID:          userID,
				StripeSessionID: s.ID,
				Plan:            string(spec.Plan),
				Amount:          decimal.New(spec.AmountCents, -2),
				Currency:        spec.Currency,
			}
		case err != nil:
			return err
		case payment.IsTerminal():
			outcome = OutcomeDuplicate
			return nil
		}

		listing.Publish(string(spec.Plan), true, now, spec.Duration)
		if err := tx.Listing.UpdateFields(ctx, listingID, map[string]interface{}{
			"status":             listing.Status,
			"is_paid":            true,
			"plan_type":          listing.PlanType,
			"expires_at":         listing.ExpiresAt,
			"published_at":       listing.PublishedAt,
			"payment_session_id": s.ID,
		}); err != nil {
			return err
		}

		if s.AmountTotal > 0 {
			payment.Amount = decimal.New(s.AmountTotal, -2)
		}
		if s.Currency != "" {
			payment.Currency = strings.ToLower(s.Currency)
		}
		eventAt := ev.CreatedAt
		payment.Status = models.PaymentStatusCompleted
		payment.CompletedAt = &now
		payment.LastEventID = ev.ID
		payment.LastEventAt = &eventAt
		if payment.ID == "" {
			return tx.Payment.Create(ctx, payment)
		}
		return tx.Payment.Save(ctx, payment)
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomePublished {
		g.invalidate(ctx, listingID)
		log.Infof("[Billing] listing %s published on %s via session %s", listingID, spec.Plan, s.ID)
	}
	return outcome, nil
}

// applyClosed records an expired or failed session. Completed payments and
// events older than the last applied one leave everything untouched.
func (g *Gateway) applyClosed(ctx context.Context, ev *Event, status string) (string, error) {
	s := ev.Session
	if s == nil || s.ID == "" {
		return "", reject("event carries no checkout session")
	}

	outcome := OutcomeExpired
	if status == models.PaymentStatusFailed {
		outcome = OutcomeFailed
	}
	var listingID string

	err := g.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		payment, err := tx.Payment.GetBySessionIDForUpdate(ctx, s.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			outcome = OutcomeIgnored
			return nil
		}
		if err != nil {
			return err
		}
		if payment.IsTerminal() || payment.IsStale(ev.CreatedAt) {
			outcome = OutcomeIgnored
			return nil
		}

		eventAt := ev.CreatedAt
		payment.Status = status
		payment.LastEventID = ev.ID
		payment.LastEventAt = &eventAt
		if err := tx.Payment.Save(ctx, payment); err != nil {
			return err
		}

		listing, err := tx.Listing.GetForUpdate(ctx, payment.ListingID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if listing.Status == models.ListingStatusPendingPayment && listing.PaymentSessionID == s.ID {
			listingID = listing.ID
			return tx.Listing.UpdateFields(ctx, listing.ID, map[string]interface{}{
				"status":             models.ListingStatusDraft,
				"payment_session_id": "",
			})
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if listingID != "" {
		g.invalidate(ctx, listingID)
		log.Infof("[Billing] session %s %s, listing %s back to draft", s.ID, status, listingID)
	}
	return outcome, nil
}

func (g *Gateway) successURL(listingID string) string {
	return fmt.Sprintf("%s/anuncio/%s?success=true", g.frontendURL, listingID)
}

// checkoutSuccessURL lets the provider append the session id so the success
// page can look the payment up.
func (g *Gateway) checkoutSuccessURL(listingID string) string {
	return g.successURL(listingID) + "&session_id={CHECKOUT_SESSION_ID}"
}

func (g *Gateway) cancelURL(listingID string) string {
	return fmt.Sprintf("%s/anuncio/%s?canceled=true", g.frontendURL, listingID)
}

func (g *Gateway) invalidate(ctx context.Context, listingID string) {
	if err := g.cache.Delete(ctx, cache.ListingKey(listingID)); err != nil {
		log.Warnf("[Billing] cache invalidate %s: %v", listingID, err)
	}
}
