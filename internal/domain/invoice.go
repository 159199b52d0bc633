package domain

import "time"

type InvoiceStatus string

const (
	InvoiceIssued   InvoiceStatus = "issued"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceExpired  InvoiceStatus = "expired"
	InvoiceFailed   InvoiceStatus = "failed"
	InvoiceOrphaned InvoiceStatus = "orphaned"
)

// GatewayInvoice is the audit record of every invoice created at the payment
// gateway. A booking references exactly one winning invoice via PaymentID;
// invoices that lost a concurrent-issuance race are kept as "orphaned".
type GatewayInvoice struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	BookingID   int64         `gorm:"index;not null" json:"booking_id"`
	PaymentID   string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	ExternalRef string        `gorm:"type:varchar(64);index;not null" json:"external_ref"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Currency    string        `gorm:"type:varchar(3);not null" json:"currency"`
	Status      InvoiceStatus `gorm:"type:varchar(16);not null;default:'issued';index" json:"status"`
	InvoiceURL  string        `gorm:"type:text" json:"invoice_url"`
	RawResponse string        `gorm:"type:text" json:"raw_response"`
	Reopened    bool          `gorm:"not null;default:false" json:"reopened"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (GatewayInvoice) TableName() string { return "gateway_invoices" }
