package payment

import "time"

type IssueInvoiceRequest struct {
	BookingID     int64  `json:"booking_id" binding:"required" example:"123"`
	CustomerEmail string `json:"customer_email" binding:"required,email" example:"guest@example.com"`
	CustomerName  string `json:"customer_name" binding:"required" example:"Ayu Lestari"`
}

type PaymentData struct {
	ID          string `json:"id" example:"inv_42"`
	Status      string `json:"status" example:"PENDING"`
	Amount      int64  `json:"amount" example:"100000"`
	Currency    string `json:"currency" example:"IDR"`
	InvoiceURL  string `json:"invoice_url" example:"https://checkout.xendit.co/web/inv_42"`
	ExternalRef string `json:"external_id" example:"booking-123"`
}

type PaymentStateData struct {
	BookingID     int64      `json:"booking_id"`
	Reference     string     `json:"reference"`
	PaymentID     string     `json:"payment_id,omitempty"`
	PaymentStatus string     `json:"payment_status"`
	BookingStatus string     `json:"booking_status"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	InvoiceURL    string     `json:"invoice_url,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// WebhookPayload is decoded leniently: the gateway adds fields freely and
// none of them may break parsing.
type WebhookPayload struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"invalid request"`
}
