package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"tripstay/internal/config"
	"tripstay/internal/database"
	"tripstay/internal/dedup"
	"tripstay/internal/gateway"
	"tripstay/internal/middleware"
	"tripstay/internal/modules/payment"
	"tripstay/internal/notify"
	jwtsvc "tripstay/internal/pkg/jwt"
	"tripstay/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	redisClient := config.NewRedisClient(cfg)
	if redisClient == nil {
		log.Println("dedup ledger disabled: no reachable redis")
	}

	bookingRepo := repository.NewBookingRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewayTimeout)
	ledger := dedup.NewLedger(redisClient, cfg.DedupTTL)
	publisher := notify.NewPublisher(cfg.AMQPURL)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	paymentService := payment.NewService(
		bookingRepo,
		invoiceRepo,
		gatewayClient,
		ledger,
		publisher,
		payment.Config{
			WebhookCallbackToken: cfg.WebhookCallbackToken,
			SuccessRedirectURL:   cfg.SuccessRedirectURL(),
			FailureRedirectURL:   cfg.FailureRedirectURL(),
		},
		log.Printf,
	)
	paymentHandler := payment.NewHandler(paymentService, log.Printf)

	r := gin.Default()
	r.Use(middleware.ErrorLogger())

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// gateway callbacks authenticate with the shared callback token
		paymentHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth(j))
		{
			paymentHandler.RegisterProtectedRoutes(protected)
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
