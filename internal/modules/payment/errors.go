package payment

import "errors"

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrAlreadySettled     = errors.New("booking payment already settled")
	ErrBookingChanged     = errors.New("booking changed during invoice issuance")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrUnauthorized       = errors.New("invalid callback token")
	ErrBadPayload         = errors.New("malformed webhook payload")
)
