package gateway

// PaymentRequest carries everything the gateway needs to mint an invoice.
// Amount and currency always come from the booking row, never from the
// caller of the HTTP API.
type PaymentRequest struct {
	ExternalRef        string `json:"external_id"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Description        string `json:"description"`
	PayerEmail         string `json:"payer_email"`
	PayerName          string `json:"payer_name"`
	SuccessRedirectURL string `json:"success_redirect_url"`
	FailureRedirectURL string `json:"failure_redirect_url"`
}

// PaymentResponse is the normalized shape of a created invoice. Provider
// field-name quirks stop at the client; nothing past this package should
// know which gateway is behind it.
type PaymentResponse struct {
	ID          string `json:"id"`
	ExternalRef string `json:"external_id"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	InvoiceURL  string `json:"invoice_url"`

	// Raw is the undecoded provider body, persisted for audit.
	Raw []byte `json:"-"`
}
