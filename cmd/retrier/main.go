// Command retrier sweeps due failed webhook deliveries and redelivers them
// on a fixed interval. It shares the database with the API server and can
// run alongside any number of server replicas.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawpay/internal/config"
	"pawpay/internal/db"
	"pawpay/internal/provider"
	"pawpay/internal/repository"
	"pawpay/internal/service"
)

func main() {
	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	paymentRepo := repository.NewPaymentRepository(gormDB)
	partnerRepo := repository.NewPartnerRepository(gormDB)
	webhookRepo := repository.NewWebhookLogRepository(gormDB)

	// The retrier never calls the gateway; the mock provider just satisfies
	// the dependency graph.
	mockProvider := provider.NewMock(cfg.MockWebhookSecret, 1.0)
	registry := provider.NewRegistry(mockProvider)
	paymentService := service.NewPaymentService(paymentRepo, mockProvider)
	webhookService := service.NewWebhookService(webhookRepo, partnerRepo, paymentService, registry, cfg.OrchestratorURL)

	interval := time.Duration(cfg.RetrySweepSeconds) * time.Second
	log.Printf("webhook retrier started, sweeping every %s", interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("webhook retrier stopping")
			return
		case <-ticker.C:
			attempted, err := webhookService.RetryPending(ctx)
			if err != nil {
				log.Printf("retry sweep: %v", err)
				continue
			}
			if attempted > 0 {
				log.Printf("retry sweep attempted %d deliveries", attempted)
			}
		}
	}
}
