package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"tripstay/internal/domain"
)

var ErrDuplicateInvoice = errors.New("invoice already recorded")

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.GatewayInvoice) error {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateInvoice
		}
		return err
	}
	return nil
}

func (r *InvoiceRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.GatewayInvoice, error) {
	var inv domain.GatewayInvoice
	if err := r.db.WithContext(ctx).First(&inv, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, paymentID string, status domain.InvoiceStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.GatewayInvoice{}).
		Where("payment_id = ?", paymentID).
		Update("status", status).Error
}

// MarkReopened flags an invoice whose PAID arrived after a terminal
// expired/failed state, for reconciliation audits.
func (r *InvoiceRepository) MarkReopened(ctx context.Context, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.GatewayInvoice{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]interface{}{"reopened": true, "status": domain.InvoicePaid}).Error
}

// MarkOrphaned tags an invoice that lost the concurrent-issuance race; the
// booking points at the winner and this row stays for audit only.
func (r *InvoiceRepository) MarkOrphaned(ctx context.Context, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&domain.GatewayInvoice{}).
		Where("payment_id = ?", paymentID).
		Update("status", domain.InvoiceOrphaned).Error
}
