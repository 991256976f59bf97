package billing

import "time"

// SessionRequest asks for a publication of a listing under a plan.
type SessionRequest struct {
	ListingID string `json:"listingId" validate:"required,max=64"`
	UserID    string `json:"userId" validate:"required,max=64"`
	Plan      string `json:"plan" validate:"plan"`
}

// SessionResult is returned to the client. Paid plans carry the checkout
// session; the free plan publishes immediately and only carries a URL.
type SessionResult struct {
	SessionID string     `json:"sessionId,omitempty"`
	URL       string     `json:"url"`
	Plan      string     `json:"plan,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// CheckoutParams is the provider-neutral checkout request.
type CheckoutParams struct {
	ListingID   string
	UserID      string
	Plan        string
	Title       string
	Description string
	PriceID     string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is what the provider returns for a new session.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified provider webhook event.
type Event struct {
	ID        string
	Type      string
	CreatedAt time.Time
	Session   *SessionData
}

// SessionData is the checkout session carried by a checkout.session.* event.
type SessionData struct {
	ID            string
	Metadata      map[string]string
	AmountTotal   int64
	Currency      string
	PaymentStatus string
}

// WebhookResult tells the caller what a delivery did.
type WebhookResult struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Outcome   string `json:"outcome"`
}

// Webhook outcomes.
const (
	OutcomePublished = "published"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeAwaiting  = "awaiting_payment"
)

// Checkout event types handled by the gateway.
const (
	EventSessionCompleted          = "checkout.session.completed"
	EventSessionAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventSessionExpired            = "checkout.session.expired"
	EventSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
)
