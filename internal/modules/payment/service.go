package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tripstay/internal/domain"
	"tripstay/internal/gateway"
	"tripstay/internal/notify"
)

// Outcome classifies how a webhook delivery ended. Terminal outcomes are
// stored in the dedup ledger; anything else means the delivery may be
// processed again, which the conditional booking writes make safe.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeReplay         Outcome = "replay"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeUnknownInvoice Outcome = "unknown_invoice"
	OutcomeInconsistent   Outcome = "inconsistent"

	outcomeInFlight = "in_flight"
)

func (o Outcome) terminal() bool {
	switch o {
	case OutcomeApplied, OutcomeReplay, OutcomeIgnored, OutcomeUnknownInvoice, OutcomeInconsistent:
		return true
	}
	return false
}

type Config struct {
	WebhookCallbackToken string
	SuccessRedirectURL   string
	FailureRedirectURL   string
}

// Service is the reconciliation engine: it issues gateway invoices for
// bookings and applies inbound status notifications to booking state. It
// keeps no state of its own; correctness under concurrent deliveries comes
// from the booking store's conditional writes, not from locks here.
type Service struct {
	bookings bookingStore
	invoices invoiceStore
	gateway  invoiceCreator
	ledger   dedupLedger
	notifier notificationSink
	loggerf  func(format string, args ...interface{})

	webhookToken []byte
	successURL   string
	failureURL   string
}

func NewService(bookings bookingStore, invoices invoiceStore, gw invoiceCreator, ledger dedupLedger, notifier notificationSink, cfg Config, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		bookings:     bookings,
		invoices:     invoices,
		gateway:      gw,
		ledger:       ledger,
		notifier:     notifier,
		loggerf:      loggerf,
		webhookToken: []byte(cfg.WebhookCallbackToken),
		successURL:   cfg.SuccessRedirectURL,
		failureURL:   cfg.FailureRedirectURL,
	}
}

// IssueInvoice creates a gateway invoice for the booking and links it as the
// pending payment. Safe to retry: while the linked invoice is still pending
// the stored one is returned instead of minting a second.
func (s *Service) IssueInvoice(ctx context.Context, req IssueInvoiceRequest) (*PaymentData, error) {
	b, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("fetch booking %d: %w", req.BookingID, err)
	}

	if b.PaymentID != nil {
		return s.existingInvoice(ctx, b)
	}

	paymentReq := gateway.PaymentRequest{
		ExternalRef:        externalRef(b.ID),
		Amount:             b.Amount,
		Currency:           b.Currency,
		Description:        fmt.Sprintf("Booking %s: %s, %s", b.Reference, b.HotelName, b.Destination),
		PayerEmail:         req.CustomerEmail,
		PayerName:          req.CustomerName,
		SuccessRedirectURL: s.successURL,
		FailureRedirectURL: s.failureURL,
	}

	resp, err := s.gateway.CreateInvoice(ctx, paymentReq)
	if err != nil {
		s.loggerf("level=error msg=gateway invoice creation failed booking_id=%d err=%v", b.ID, err)
		if errors.Is(err, gateway.ErrUnavailable) {
			return nil, ErrGatewayUnavailable
		}
		return nil, fmt.Errorf("create invoice for booking %d: %w", b.ID, err)
	}

	inv := &domain.GatewayInvoice{
		BookingID:   b.ID,
		PaymentID:   resp.ID,
		ExternalRef: paymentReq.ExternalRef,
		Amount:      b.Amount,
		Currency:    b.Currency,
		Status:      domain.InvoiceIssued,
		InvoiceURL:  resp.InvoiceURL,
		RawResponse: string(resp.Raw),
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		// Audit record only; the booking linkage below is what matters.
		s.loggerf("level=error msg=failed to record gateway invoice booking_id=%d payment_id=%s err=%v", b.ID, resp.ID, err)
	}

	applied, err := s.bookings.SetPaymentPending(ctx, b.ID, resp.ID, paymentReq.Amount, paymentReq.Currency)
	if err != nil {
		return nil, fmt.Errorf("link invoice %s to booking %d: %w", resp.ID, b.ID, err)
	}
	if !applied {
		// Either a concurrent issuance won the race or the booking's amount
		// changed under us. Our invoice stays on file as orphaned; re-read to
		// find out which it was.
		s.loggerf("level=warn msg=invoice linkage rejected booking_id=%d orphaned_payment_id=%s", b.ID, resp.ID)
		if err := s.invoices.MarkOrphaned(ctx, resp.ID); err != nil {
			s.loggerf("level=error msg=failed to mark invoice orphaned payment_id=%s err=%v", resp.ID, err)
		}
		winner, err := s.bookings.GetByID(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("re-read booking %d after rejected linkage: %w", b.ID, err)
		}
		if winner.PaymentID == nil {
			// No winner linked anything: the amount or currency moved while
			// the invoice was being minted. Never ship the stale figure.
			s.loggerf("level=warn msg=booking changed during issuance booking_id=%d invoiced_amount=%d current_amount=%d", b.ID, paymentReq.Amount, winner.Amount)
			return nil, ErrBookingChanged
		}
		return s.existingInvoice(ctx, winner)
	}

	s.loggerf("level=info msg=invoice issued booking_id=%d payment_id=%s amount=%d currency=%s", b.ID, resp.ID, b.Amount, b.Currency)
	return &PaymentData{
		ID:          resp.ID,
		Status:      resp.Status,
		Amount:      b.Amount,
		Currency:    b.Currency,
		InvoiceURL:  resp.InvoiceURL,
		ExternalRef: paymentReq.ExternalRef,
	}, nil
}

// existingInvoice serves the idempotent re-issue path: pending bookings get
// their stored invoice back, settled ones are refused.
func (s *Service) existingInvoice(ctx context.Context, b *domain.Booking) (*PaymentData, error) {
	if b.PaymentID == nil || b.PaymentStatus != domain.PaymentPending {
		return nil, ErrAlreadySettled
	}

	data := &PaymentData{
		ID:          *b.PaymentID,
		Status:      "PENDING",
		Amount:      b.Amount,
		Currency:    b.Currency,
		ExternalRef: externalRef(b.ID),
	}
	inv, err := s.invoices.GetByPaymentID(ctx, *b.PaymentID)
	if err != nil {
		s.loggerf("level=warn msg=invoice record missing for pending booking booking_id=%d payment_id=%s err=%v", b.ID, *b.PaymentID, err)
		return data, nil
	}
	data.InvoiceURL = inv.InvoiceURL
	data.ExternalRef = inv.ExternalRef
	return data, nil
}

// GetPaymentState reports the current payment dimension of a booking.
func (s *Service) GetPaymentState(ctx context.Context, bookingID int64) (*PaymentStateData, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("fetch booking %d: %w", bookingID, err)
	}

	data := &PaymentStateData{
		BookingID:     b.ID,
		Reference:     b.Reference,
		PaymentStatus: string(b.PaymentStatus),
		BookingStatus: string(b.Status),
		Amount:        b.Amount,
		Currency:      b.Currency,
		PaidAt:        b.PaidAt,
	}
	if b.PaymentID != nil {
		data.PaymentID = *b.PaymentID
		if inv, err := s.invoices.GetByPaymentID(ctx, *b.PaymentID); err == nil {
			data.InvoiceURL = inv.InvoiceURL
		}
	}
	return data, nil
}

// HandleNotification consumes one inbound gateway callback. The order is
// fixed: authenticate, parse, dedup, resolve, transition, notify. Nothing
// before a successful authentication may touch state or reveal whether the
// invoice exists.
func (s *Service) HandleNotification(ctx context.Context, rawBody []byte, callbackToken string) (Outcome, error) {
	if subtle.ConstantTimeCompare([]byte(callbackToken), s.webhookToken) != 1 {
		return "", ErrUnauthorized
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("%w: missing invoice id", ErrBadPayload)
	}

	eventStatus := strings.ToUpper(strings.TrimSpace(payload.Status))
	target, known := normalizeStatus(eventStatus)
	if !known {
		// Unknown statuses must never block later valid callbacks.
		s.loggerf("level=warn msg=unrecognized webhook status payment_id=%s status=%q", payload.ID, payload.Status)
		return OutcomeIgnored, nil
	}

	first, prior, err := s.ledger.Remember(ctx, payload.ID, eventStatus, outcomeInFlight)
	if err != nil {
		s.loggerf("level=warn msg=dedup ledger unavailable payment_id=%s err=%v", payload.ID, err)
	}
	if !first && Outcome(prior).terminal() {
		s.loggerf("level=info msg=duplicate webhook suppressed payment_id=%s status=%s prior_outcome=%s", payload.ID, eventStatus, prior)
		return Outcome(prior), nil
	}

	outcome, err := s.reconcile(ctx, payload.ID, eventStatus, target)
	if err != nil {
		// Leave the ledger entry non-terminal so the provider's retry gets
		// processed instead of suppressed.
		return "", err
	}

	if lerr := s.ledger.Update(ctx, payload.ID, eventStatus, string(outcome)); lerr != nil {
		s.loggerf("level=warn msg=failed to store dedup outcome payment_id=%s err=%v", payload.ID, lerr)
	}
	return outcome, nil
}

// reconcile applies one normalized event to the booking referencing the
// invoice, per the transition table. The compare-and-swap write closes the
// race between concurrent deliveries; the loser is a no-op success.
func (s *Service) reconcile(ctx context.Context, paymentID, eventStatus string, target domain.PaymentStatus) (Outcome, error) {
	b, err := s.bookings.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.loggerf("level=warn msg=webhook for unknown invoice payment_id=%s status=%s", paymentID, eventStatus)
			return OutcomeUnknownInvoice, nil
		}
		return "", fmt.Errorf("resolve invoice %s: %w", paymentID, err)
	}

	current := b.PaymentStatus
	reopened := false

	switch {
	case current == domain.PaymentNone:
		// The linkage write never happened; this invoice was never issued
		// for the booking as far as the store knows.
		s.loggerf("level=warn msg=webhook for unissued payment booking_id=%d payment_id=%s", b.ID, paymentID)
		return OutcomeUnknownInvoice, nil

	case current == domain.PaymentPending:
		// proceeds to the conditional write below

	case current == target:
		s.loggerf("level=info msg=idempotent webhook replay booking_id=%d payment_id=%s status=%s", b.ID, paymentID, eventStatus)
		return OutcomeReplay, nil

	case current == domain.PaymentCompleted:
		// A terminal completed never regresses; EXPIRED/FAILED afterwards is
		// a gateway inconsistency worth an audit trail.
		s.loggerf("level=error msg=inconsistent webhook for settled booking booking_id=%d payment_id=%s current=%s event=%s", b.ID, paymentID, current, eventStatus)
		return OutcomeInconsistent, nil

	case target == domain.PaymentCompleted:
		// expired/failed + PAID: the gateway re-opened the invoice.
		reopened = true

	default:
		// expired + FAILED or failed + EXPIRED: both already cancelled the
		// booking, nothing left to change.
		s.loggerf("level=info msg=webhook no-op on settled booking booking_id=%d payment_id=%s current=%s event=%s", b.ID, paymentID, current, eventStatus)
		return OutcomeReplay, nil
	}

	bookingStatus := domain.BookingCancelled
	var paidAt *time.Time
	if target == domain.PaymentCompleted {
		bookingStatus = domain.BookingConfirmed
		now := time.Now().UTC()
		paidAt = &now
	}

	applied, err := s.bookings.ApplyPaymentTransition(ctx, b.ID, current, target, bookingStatus, paidAt)
	if err != nil {
		return "", fmt.Errorf("apply transition %s->%s for booking %d: %w", current, target, b.ID, err)
	}
	if !applied {
		// Another delivery won the conditional write; its state stands.
		s.loggerf("level=info msg=lost transition race treated as no-op booking_id=%d payment_id=%s attempted=%s", b.ID, paymentID, target)
		return OutcomeReplay, nil
	}

	s.recordInvoiceStatus(ctx, paymentID, target, reopened)
	if reopened {
		s.loggerf("level=warn msg=reopened invoice completed booking_id=%d payment_id=%s previous_status=%s", b.ID, paymentID, current)
	}

	if target == domain.PaymentCompleted {
		event := notify.PaymentConfirmedEvent{
			BookingID: b.ID,
			Reference: b.Reference,
			PaymentID: paymentID,
			Amount:    b.Amount,
			Currency:  b.Currency,
			PaidAt:    *paidAt,
		}
		if err := s.notifier.PublishPaymentConfirmed(ctx, event); err != nil {
			// Best-effort: the gateway still gets its acknowledgment.
			s.loggerf("level=error msg=payment confirmed notification failed booking_id=%d err=%v", b.ID, err)
		}
	}

	s.loggerf("level=info msg=payment transition applied booking_id=%d payment_id=%s from=%s to=%s", b.ID, paymentID, current, target)
	return OutcomeApplied, nil
}

func (s *Service) recordInvoiceStatus(ctx context.Context, paymentID string, target domain.PaymentStatus, reopened bool) {
	var err error
	switch {
	case reopened:
		err = s.invoices.MarkReopened(ctx, paymentID)
	case target == domain.PaymentCompleted:
		err = s.invoices.UpdateStatus(ctx, paymentID, domain.InvoicePaid)
	case target == domain.PaymentExpired:
		err = s.invoices.UpdateStatus(ctx, paymentID, domain.InvoiceExpired)
	case target == domain.PaymentFailed:
		err = s.invoices.UpdateStatus(ctx, paymentID, domain.InvoiceFailed)
	}
	if err != nil {
		s.loggerf("level=error msg=failed to update invoice audit status payment_id=%s err=%v", paymentID, err)
	}
}

// normalizeStatus maps provider status strings onto the payment dimension.
func normalizeStatus(status string) (domain.PaymentStatus, bool) {
	switch status {
	case "PAID", "SETTLED":
		return domain.PaymentCompleted, true
	case "EXPIRED":
		return domain.PaymentExpired, true
	case "FAILED":
		return domain.PaymentFailed, true
	}
	return "", false
}

func externalRef(bookingID int64) string {
	return fmt.Sprintf("booking-%d", bookingID)
}
