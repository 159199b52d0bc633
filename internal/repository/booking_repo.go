package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"tripstay/internal/domain"
)

var ErrDuplicateReference = errors.New("booking reference already exists")

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// SetPaymentPending links a freshly issued invoice to the booking. The write
// only applies while no invoice has ever been linked and the booking still
// carries the amount and currency the invoice was created with; anything else
// gets applied=false and must re-read to find out what changed.
func (r *BookingRepository) SetPaymentPending(ctx context.Context, bookingID int64, paymentID string, amount int64, currency string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND payment_status = ? AND payment_id IS NULL AND amount = ? AND currency = ?",
			bookingID, domain.PaymentNone, amount, currency).
		Updates(map[string]interface{}{
			"payment_id":     paymentID,
			"payment_status": domain.PaymentPending,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ApplyPaymentTransition moves payment_status from exactly `from` to `to` and
// derives the booking lifecycle status in the same conditional write. Returns
// applied=false when another delivery got there first.
func (r *BookingRepository) ApplyPaymentTransition(ctx context.Context, bookingID int64, from, to domain.PaymentStatus, bookingStatus domain.BookingStatus, paidAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"payment_status": to,
		"status":         bookingStatus,
		"updated_at":     time.Now().UTC(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ? AND payment_status = ?", bookingID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
