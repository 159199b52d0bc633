package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further webhook may move the status forward,
// except the documented re-open path (expired/failed + PAID).
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentExpired || s == PaymentFailed
}

type Booking struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Reference   string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"reference"`
	UserID      int64     `gorm:"index" json:"user_id"`
	HotelName   string    `gorm:"type:varchar(255)" json:"hotel_name"`
	Destination string    `gorm:"type:varchar(255)" json:"destination"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	Guests      int       `json:"guests"`

	// Amount is in the currency's minor unit. Immutable once an invoice exists.
	Amount   int64  `gorm:"not null" json:"amount"`
	Currency string `gorm:"type:varchar(3);not null;default:'IDR'" json:"currency"`

	PaymentID     *string       `gorm:"type:varchar(64);uniqueIndex" json:"payment_id,omitempty"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null;default:'none';index" json:"payment_status"`
	Status        BookingStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }
