package notify

import "time"

const PaymentConfirmedQueue = "booking.payment.confirmed"

// PaymentConfirmedEvent is published once per booking transition into
// completed. Consumers downstream (mail, cache invalidation) are best-effort
// collaborators; nothing in the engine waits on them.
type PaymentConfirmedEvent struct {
	BookingID     int64     `json:"booking_id"`
	Reference     string    `json:"reference"`
	PaymentID     string    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	CustomerEmail string    `json:"customer_email"`
	PaidAt        time.Time `json:"paid_at"`
}
