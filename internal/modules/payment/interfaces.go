package payment

import (
	"context"
	"time"

	"tripstay/internal/domain"
	"tripstay/internal/gateway"
	"tripstay/internal/notify"
)

type bookingStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error)
	SetPaymentPending(ctx context.Context, bookingID int64, paymentID string, amount int64, currency string) (bool, error)
	ApplyPaymentTransition(ctx context.Context, bookingID int64, from, to domain.PaymentStatus, bookingStatus domain.BookingStatus, paidAt *time.Time) (bool, error)
}

type invoiceStore interface {
	Create(ctx context.Context, inv *domain.GatewayInvoice) error
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.GatewayInvoice, error)
	UpdateStatus(ctx context.Context, paymentID string, status domain.InvoiceStatus) error
	MarkReopened(ctx context.Context, paymentID string) error
	MarkOrphaned(ctx context.Context, paymentID string) error
}

type invoiceCreator interface {
	CreateInvoice(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentResponse, error)
}

type dedupLedger interface {
	Remember(ctx context.Context, invoiceID, status, outcome string) (first bool, prior string, err error)
	Update(ctx context.Context, invoiceID, status, outcome string) error
}

type notificationSink interface {
	PublishPaymentConfirmed(ctx context.Context, event notify.PaymentConfirmedEvent) error
}
