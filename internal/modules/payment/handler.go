package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tripstay/internal/pkg/response"
)

const callbackTokenHeader = "X-Callback-Token"

type Handler struct {
	service *Service
	loggerf func(format string, args ...interface{})
}

func NewHandler(service *Service, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{service: service, loggerf: loggerf}
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/invoice", h.IssueInvoice)
	rg.GET("/payments/invoice/:booking_id", h.GetPaymentState)
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/webhook", h.Webhook)
}

// IssueInvoice godoc
// @Summary      Issue a payment invoice for a booking
// @Description  Creates a gateway invoice and links it to the booking; retrying returns the pending invoice
// @Tags         Payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body body IssueInvoiceRequest true "Invoice issuance payload"
// @Success      200 {object} PaymentData
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /payments/invoice [post]
func (h *Handler) IssueInvoice(c *gin.Context) {
	var req IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.loggerf("level=error msg=invalid invoice issuance payload err=%v", err)
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	data, err := h.service.IssueInvoice(c.Request.Context(), req)
	if err != nil {
		h.loggerf("level=error msg=invoice issuance failed booking_id=%d err=%v", req.BookingID, err)
		switch {
		case errors.Is(err, ErrBookingNotFound):
			response.Error(c, http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found")
		case errors.Is(err, ErrAlreadySettled):
			response.Error(c, http.StatusConflict, "ALREADY_SETTLED", "Booking payment is already settled")
		case errors.Is(err, ErrBookingChanged):
			response.Error(c, http.StatusConflict, "BOOKING_CHANGED", "Booking changed during issuance, retry")
		case errors.Is(err, ErrGatewayUnavailable):
			response.Error(c, http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "Payment gateway unavailable, retry later")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue invoice")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"payment": data})
}

// GetPaymentState godoc
// @Summary      Current payment state of a booking
// @Tags         Payments
// @Security     BearerAuth
// @Produce      json
// @Param        booking_id path integer true "Booking ID"
// @Success      200 {object} PaymentStateData
// @Failure      404 {object} ErrorResponse
// @Router       /payments/invoice/{booking_id} [get]
func (h *Handler) GetPaymentState(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("booking_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking id")
		return
	}

	data, err := h.service.GetPaymentState(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			response.Error(c, http.StatusNotFound, "BOOKING_NOT_FOUND", "Booking not found")
			return
		}
		h.loggerf("level=error msg=payment state lookup failed booking_id=%d err=%v", bookingID, err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load payment state")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"payment": data})
}

// Webhook godoc
// @Summary      Payment gateway status callback
// @Description  Authenticates, deduplicates and applies an invoice status notification
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        X-Callback-Token header string true "Shared callback token"
// @Success      200 {object} map[string]bool
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /payments/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "Unreadable body")
		return
	}

	outcome, err := h.service.HandleNotification(c.Request.Context(), rawBody, c.GetHeader(callbackTokenHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			// Same rejection whether or not the invoice exists.
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid callback token")
		case errors.Is(err, ErrBadPayload):
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "Malformed payload")
		default:
			// Transient failure: a 5xx keeps the provider retrying.
			h.loggerf("level=error msg=webhook processing failed err=%v", err)
			response.Error(c, http.StatusServiceUnavailable, "TEMPORARY_FAILURE", "Retry later")
		}
		return
	}

	if outcome == OutcomeInconsistent {
		c.JSON(http.StatusConflict, gin.H{"received": true})
		return
	}
	response.Received(c, http.StatusOK)
}
