package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tripstay/internal/database"
	"tripstay/internal/dedup"
	"tripstay/internal/domain"
	"tripstay/internal/gateway"
	"tripstay/internal/middleware"
	"tripstay/internal/modules/payment"
	"tripstay/internal/notify"
	jwtsvc "tripstay/internal/pkg/jwt"
	"tripstay/internal/repository"
)

const callbackToken = "e2e-callback-token"

type suite struct {
	router      *gin.Engine
	db          *gorm.DB
	bookings    *repository.BookingRepository
	token       string
	gatewaySrv  *httptest.Server
	invoiceSeq  atomic.Int64
	gatewayHits atomic.Int64
}

func setupSuite(t *testing.T) *suite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &suite{}

	db, err := database.Connect(fmt.Sprintf("file:e2e_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	s.db = db
	s.bookings = repository.NewBookingRepository(db)

	// stub gateway: mints sequential invoice ids
	s.gatewaySrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.gatewayHits.Add(1)
		var req gateway.PaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		id := fmt.Sprintf("inv_%d", s.invoiceSeq.Add(1))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          id,
			"external_id": req.ExternalRef,
			"status":      "PENDING",
			"amount":      req.Amount,
			"currency":    req.Currency,
			"invoice_url": "https://checkout.test/" + id,
		})
	}))
	t.Cleanup(s.gatewaySrv.Close)

	j := jwtsvc.New("e2e-secret", time.Hour)
	s.token, err = j.GenerateToken(1, "guest@example.com")
	require.NoError(t, err)

	svc := payment.NewService(
		s.bookings,
		repository.NewInvoiceRepository(db),
		gateway.NewClient(s.gatewaySrv.URL, "sk_test", 2*time.Second),
		dedup.NewLedger(nil, time.Hour), // no redis in tests; CAS carries correctness
		notify.NewPublisher(""),         // no broker in tests
		payment.Config{
			WebhookCallbackToken: callbackToken,
			SuccessRedirectURL:   "http://localhost:3000/payment/success",
			FailureRedirectURL:   "http://localhost:3000/payment/failure",
		},
		nil,
	)
	h := payment.NewHandler(svc, nil)

	r := gin.New()
	r.Use(middleware.ErrorLogger())
	v1 := r.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	protected := v1.Group("/")
	protected.Use(middleware.RequireAuth(j))
	h.RegisterProtectedRoutes(protected)
	s.router = r

	return s
}

func (s *suite) createBooking(t *testing.T, amount int64) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		Reference:     fmt.Sprintf("TRP-%d", time.Now().UnixNano()),
		UserID:        1,
		HotelName:     "Ubud Garden Resort",
		Destination:   "Bali",
		CheckIn:       time.Now().AddDate(0, 1, 0),
		CheckOut:      time.Now().AddDate(0, 1, 3),
		Guests:        2,
		Amount:        amount,
		Currency:      "IDR",
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentNone,
	}
	require.NoError(t, s.bookings.Create(t.Context(), b))
	return b
}

func (s *suite) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *suite) issueInvoice(t *testing.T, bookingID int64) *httptest.ResponseRecorder {
	return s.request(t, http.MethodPost, "/api/v1/payments/invoice", map[string]any{
		"booking_id":     bookingID,
		"customer_email": "guest@example.com",
		"customer_name":  "Ayu Lestari",
	}, map[string]string{"Authorization": "Bearer " + s.token})
}

func (s *suite) webhook(t *testing.T, token string, body map[string]any) *httptest.ResponseRecorder {
	return s.request(t, http.MethodPost, "/api/v1/payments/webhook", body, map[string]string{"X-Callback-Token": token})
}

func paymentOf(t *testing.T, rr *httptest.ResponseRecorder) payment.PaymentData {
	t.Helper()
	var resp struct {
		Data struct {
			Payment payment.PaymentData `json:"payment"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Data.Payment
}

func TestPaymentReconciliation_FullFlow(t *testing.T) {
	s := setupSuite(t)
	b := s.createBooking(t, 100000)

	// issue the invoice
	rr := s.issueInvoice(t, b.ID)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	pay := paymentOf(t, rr)
	assert.Equal(t, "inv_1", pay.ID)
	assert.Equal(t, int64(100000), pay.Amount)
	assert.Equal(t, "IDR", pay.Currency)
	assert.Equal(t, fmt.Sprintf("booking-%d", b.ID), pay.ExternalRef)
	assert.NotEmpty(t, pay.InvoiceURL)

	// retrying the issuance returns the same invoice, no second gateway call
	rr = s.issueInvoice(t, b.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "inv_1", paymentOf(t, rr).ID)
	assert.Equal(t, int64(1), s.gatewayHits.Load())

	// gateway confirms payment
	rr = s.webhook(t, callbackToken, map[string]any{"id": "inv_1", "status": "PAID"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"received": true}`, rr.Body.String())

	stored, err := s.bookings.GetByID(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
	require.NotNil(t, stored.PaidAt)

	// redelivery lands on the same state
	rr = s.webhook(t, callbackToken, map[string]any{"id": "inv_1", "status": "PAID"})
	assert.Equal(t, http.StatusOK, rr.Code)

	// re-issuing after settlement is refused
	rr = s.issueInvoice(t, b.ID)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPaymentReconciliation_OutOfOrderExpiry(t *testing.T) {
	s := setupSuite(t)
	b := s.createBooking(t, 500000)

	rr := s.issueInvoice(t, b.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	pay := paymentOf(t, rr)

	rr = s.webhook(t, callbackToken, map[string]any{"id": pay.ID, "status": "PAID"})
	require.Equal(t, http.StatusOK, rr.Code)

	// the stale EXPIRED arrives late; completed must survive
	rr = s.webhook(t, callbackToken, map[string]any{"id": pay.ID, "status": "EXPIRED"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	stored, err := s.bookings.GetByID(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
}

func TestPaymentReconciliation_ExpiryCancelsBooking(t *testing.T) {
	s := setupSuite(t)
	b := s.createBooking(t, 750000)

	rr := s.issueInvoice(t, b.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	pay := paymentOf(t, rr)

	rr = s.webhook(t, callbackToken, map[string]any{"id": pay.ID, "status": "EXPIRED"})
	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := s.bookings.GetByID(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentExpired, stored.PaymentStatus)
	assert.Equal(t, domain.BookingCancelled, stored.Status)
}

func TestPaymentReconciliation_BadTokenAndUnknownInvoice(t *testing.T) {
	s := setupSuite(t)
	b := s.createBooking(t, 100000)

	rr := s.issueInvoice(t, b.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	pay := paymentOf(t, rr)

	// wrong token: rejected, nothing moves
	rr = s.webhook(t, "wrong-secret", map[string]any{"id": pay.ID, "status": "PAID"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	stored, err := s.bookings.GetByID(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus)

	// unknown invoice: acknowledged so the provider stops retrying
	rr = s.webhook(t, callbackToken, map[string]any{"id": "inv_unknown", "status": "PAID"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received": true}`, rr.Body.String())
}
