package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tripstay/internal/database"
	"tripstay/internal/domain"
)

func setupRepo(t *testing.T) *BookingRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:booking_repo_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewBookingRepository(db)
}

func seed(t *testing.T, repo *BookingRepository) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		Reference:     fmt.Sprintf("TRP-%d", time.Now().UnixNano()),
		Amount:        250000,
		Currency:      "IDR",
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentNone,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestSetPaymentPending_AppliesOnce(t *testing.T) {
	repo := setupRepo(t)
	b := seed(t, repo)
	ctx := context.Background()

	applied, err := repo.SetPaymentPending(ctx, b.ID, "inv_1", b.Amount, b.Currency)
	require.NoError(t, err)
	assert.True(t, applied)

	// the second issuer loses: the linkage is written exactly once
	applied, err = repo.SetPaymentPending(ctx, b.ID, "inv_2", b.Amount, b.Currency)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByPaymentID(ctx, "inv_1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus)

	_, err = repo.GetByPaymentID(ctx, "inv_2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSetPaymentPending_StaleAmountIsRejected(t *testing.T) {
	repo := setupRepo(t)
	b := seed(t, repo)
	ctx := context.Background()

	// an invoice minted against a figure the booking no longer carries must
	// never be linked
	applied, err := repo.SetPaymentPending(ctx, b.ID, "inv_stale", b.Amount-1, b.Currency)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.SetPaymentPending(ctx, b.ID, "inv_wrong_ccy", b.Amount, "USD")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PaymentID)
	assert.Equal(t, domain.PaymentNone, stored.PaymentStatus)

	// the matching figure still links
	applied, err = repo.SetPaymentPending(ctx, b.ID, "inv_1", b.Amount, b.Currency)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestApplyPaymentTransition_CompareAndSwap(t *testing.T) {
	repo := setupRepo(t)
	b := seed(t, repo)
	ctx := context.Background()

	_, err := repo.SetPaymentPending(ctx, b.ID, "inv_1", b.Amount, b.Currency)
	require.NoError(t, err)

	now := time.Now().UTC()
	applied, err := repo.ApplyPaymentTransition(ctx, b.ID, domain.PaymentPending, domain.PaymentCompleted, domain.BookingConfirmed, &now)
	require.NoError(t, err)
	assert.True(t, applied)

	// a delivery that still believes the booking is pending loses the swap
	applied, err = repo.ApplyPaymentTransition(ctx, b.ID, domain.PaymentPending, domain.PaymentExpired, domain.BookingCancelled, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
	require.NotNil(t, stored.PaidAt)
}

func TestApplyPaymentTransition_ReopenPath(t *testing.T) {
	repo := setupRepo(t)
	b := seed(t, repo)
	ctx := context.Background()

	_, err := repo.SetPaymentPending(ctx, b.ID, "inv_1", b.Amount, b.Currency)
	require.NoError(t, err)

	applied, err := repo.ApplyPaymentTransition(ctx, b.ID, domain.PaymentPending, domain.PaymentExpired, domain.BookingCancelled, nil)
	require.NoError(t, err)
	require.True(t, applied)

	now := time.Now().UTC()
	applied, err = repo.ApplyPaymentTransition(ctx, b.ID, domain.PaymentExpired, domain.PaymentCompleted, domain.BookingConfirmed, &now)
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.PaymentStatus)
}
