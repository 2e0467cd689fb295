package services

import (
	"context"
	"sync"
	"time"

	"github.com/closedroom/portal/internal/models"
)

// DefaultPollInterval is the invoice status poll cadence.
const DefaultPollInterval = 5 * time.Second

// SessionState is the lifecycle position of one payment session.
type SessionState int

const (
	// SessionCreated: no invoice requested yet.
	SessionCreated SessionState = iota
	// SessionPending: invoice issued, polling for payment.
	SessionPending
	// SessionPaid: payment observed and credited.
	SessionPaid
	// SessionAbandoned: closed by the user before payment. The invoice
	// stays valid server-side; the client just stops polling.
	SessionAbandoned
)

// PaymentSession manages one token-purchase invoice: creation, status
// polling on a fixed interval, and terminal resolution. Polling runs as an
// explicit cancellable task that is started by Open and guaranteed-stopped
// by Close or payment; a poll response landing after close is discarded.
//
// Manual checks and passive polls share one settlement path, and the
// balance credit is idempotent per invoice, so neither can double-apply.
type PaymentSession struct {
	invoices     InvoiceClient
	users        UserClient
	entitlements *EntitlementStore
	tokens       int
	interval     time.Duration

	// OnPaid, when set before Open, is invoked once after the paid invoice
	// has been credited.
	OnPaid func()

	mu       sync.Mutex
	state    SessionState
	invoice  *models.PaymentInvoice
	credited bool
	inflight bool
	done     chan struct{}
}

func NewPaymentSession(invoices InvoiceClient, users UserClient, ents *EntitlementStore, tokens int) *PaymentSession {
	return &PaymentSession{
		invoices:     invoices,
		users:        users,
		entitlements: ents,
		tokens:       tokens,
		interval:     DefaultPollInterval,
	}
}

// SetPollInterval overrides the poll cadence. Takes effect on the next
// Open; tests shorten it.
func (s *PaymentSession) SetPollInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.interval = d
	}
}

// State returns the session's lifecycle position.
func (s *PaymentSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invoice returns the issued invoice, or nil before Open succeeds. The UI
// renders a loading placeholder while it is absent.
func (s *PaymentSession) Invoice() *models.PaymentInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoice
}

// Open requests an invoice for the session's token quantity and starts the
// polling task. Invoice creation failure surfaces as InvoiceUnavailable
// and leaves the session reusable.
func (s *PaymentSession) Open(ctx context.Context) (*models.PaymentInvoice, error) {
	s.mu.Lock()
	if s.state != SessionCreated {
		s.mu.Unlock()
		return nil, NewInvalidError("payment session already opened")
	}
	s.mu.Unlock()

	inv, err := s.invoices.CreateInvoice(ctx, s.tokens)
	if err != nil {
		return nil, NewInvoiceUnavailableError(err.Error())
	}

	s.mu.Lock()
	s.invoice = inv
	s.state = SessionPending
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.pollLoop()
	return inv, nil
}

func (s *PaymentSession) pollLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.pollOnce(context.Background())
		}
	}
}

// pollOnce runs one passive status check. Ticks are skipped while a
// previous poll is still in flight, and failures are silently retried on
// the next tick.
func (s *PaymentSession) pollOnce(ctx context.Context) {
	s.mu.Lock()
	if s.state != SessionPending || s.inflight {
		s.mu.Unlock()
		return
	}
	s.inflight = true
	invID := s.invoice.InvoiceID
	s.mu.Unlock()

	status, err := s.invoices.InvoiceStatus(ctx, invID)

	s.mu.Lock()
	s.inflight = false
	closed := s.state != SessionPending
	s.mu.Unlock()
	if closed || err != nil {
		return
	}
	if status.Status == models.InvoicePaid {
		s.settle(ctx, invID)
	}
}

// CheckNow is the explicit "check payment" action. It reports whether the
// invoice is paid; a failed request surfaces as StatusCheckFailure instead
// of the polling loop's silent retry.
func (s *PaymentSession) CheckNow(ctx context.Context) (bool, error) {
	s.mu.Lock()
	switch s.state {
	case SessionPaid:
		s.mu.Unlock()
		return true, nil
	case SessionPending:
	default:
		s.mu.Unlock()
		return false, NewInvalidError("payment session is not open")
	}
	invID := s.invoice.InvoiceID
	s.mu.Unlock()

	status, err := s.invoices.InvoiceStatus(ctx, invID)
	if err != nil {
		return false, NewStatusCheckFailureError(err.Error())
	}
	if status.Status != models.InvoicePaid {
		return false, nil
	}
	s.settle(ctx, invID)
	return true, nil
}

// settle applies the terminal PAID resolution exactly once per invoice:
// stop polling, reconcile the entitlement mirror from server truth, then
// fire OnPaid.
func (s *PaymentSession) settle(ctx context.Context, invID string) {
	s.mu.Lock()
	if s.credited || s.state != SessionPending || s.invoice == nil || s.invoice.InvoiceID != invID {
		s.mu.Unlock()
		return
	}
	s.credited = true
	s.state = SessionPaid
	close(s.done)
	onPaid := s.OnPaid
	s.mu.Unlock()

	seq := s.entitlements.BeginFetch()
	snap, err := s.users.Me(ctx)
	if err != nil {
		// Credit optimistically; the next successful fetch reconciles.
		s.entitlements.ApplyOptimistic(s.tokens)
	} else {
		s.entitlements.Reconcile(seq, *snap)
	}
	if onPaid != nil {
		onPaid()
	}
}

// Close abandons an open session: future polls stop, an in-flight response
// is discarded on arrival, and the invoice itself is not cancelled.
func (s *PaymentSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionPending {
		s.state = SessionAbandoned
		close(s.done)
	}
}
