package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "pawpay/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pawpay/internal/auth"
	"pawpay/internal/cache"
	"pawpay/internal/config"
	"pawpay/internal/db"
	"pawpay/internal/handler"
	"pawpay/internal/idempotency"
	"pawpay/internal/model"
	"pawpay/internal/provider"
	"pawpay/internal/repository"
	"pawpay/internal/router"
	"pawpay/internal/service"
)

// @title PawPay Payment Orchestration API
// @version 1.0
// @description Payment orchestration with provider checkouts, signed partner webhooks, and idempotent payment creation.
// @host localhost:5000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping all tables...")
		tables := []interface{}{
			&model.WebhookLog{},
			&model.Partner{},
			&model.Payment{},
		}
		for _, table := range tables {
			if err := gormDB.Migrator().DropTable(table); err != nil {
				log.Printf("Warning: Failed to drop table (may not exist): %v", err)
			}
		}
		log.Println("Tables dropped")
	}

	// Run migrations for all models
	if err := gormDB.AutoMigrate(
		&model.Payment{},
		&model.Partner{},
		&model.WebhookLog{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Prefer the Redis coordinator; fall back to process-local memory when
	// Redis is unreachable so payment creation keeps working.
	var coordinator idempotency.Coordinator
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable (%v), using in-memory idempotency store", err)
		coordinator = idempotency.NewMemory()
	} else {
		coordinator = idempotency.NewRedis(cacheClient)
	}
	cancel()

	// Initialize providers
	mockProvider := provider.NewMock(cfg.MockWebhookSecret, 0.9)
	providers := []provider.Provider{mockProvider}
	var active provider.Provider = mockProvider
	if cfg.StripeSecretKey != "" {
		stripeProvider := provider.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		providers = append(providers, stripeProvider)
		if cfg.PaymentProvider == "stripe" {
			active = stripeProvider
		}
	} else if cfg.PaymentProvider == "stripe" {
		log.Println("PAYMENT_PROVIDER=stripe but STRIPE_SECRET_KEY is unset, using mock provider")
	}
	registry := provider.NewRegistry(providers...)

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(gormDB)
	partnerRepo := repository.NewPartnerRepository(gormDB)
	webhookRepo := repository.NewWebhookLogRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AdminAPIKey)

	// Initialize services
	paymentService := service.NewPaymentService(paymentRepo, active)
	partnerService := service.NewPartnerService(partnerRepo)
	webhookService := service.NewWebhookService(webhookRepo, partnerRepo, paymentService, registry, cfg.OrchestratorURL)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(jwtService)
	paymentHandler := handler.NewPaymentHandler(paymentService, coordinator)
	partnerHandler := handler.NewPartnerHandler(partnerService, webhookService)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	// Register routes
	router.Register(
		e,
		cfg,
		authHandler,
		paymentHandler,
		partnerHandler,
		webhookHandler,
	)

	log.Printf("active payment provider: %s", active.Name())

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
