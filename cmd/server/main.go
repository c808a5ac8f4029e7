// Package main is the entry point for the flash-sale service. It loads
// configuration, wires the Sale Coordinator to Redis, starts the
// background audit worker and reconciliation job, and serves the HTTP
// surface until an interrupt signal arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashsale/flashsale/internal/audit"
	"github.com/flashsale/flashsale/internal/config"
	"github.com/flashsale/flashsale/internal/httpapi"
	"github.com/flashsale/flashsale/internal/ledger"
	"github.com/flashsale/flashsale/internal/models"
	"github.com/flashsale/flashsale/internal/reconcile"
	"github.com/flashsale/flashsale/internal/redisstore"
	"github.com/flashsale/flashsale/internal/sale"
)

// main performs, in order:
//  1. Load configuration from the environment.
//  2. Connect to Redis (the Atomic Store) and PostgreSQL (the audit trail).
//  3. Initialize the audit schema and the stock counter.
//  4. Start the background audit worker and the reconciliation job.
//  5. Mount the HTTP surface and serve until SIGINT/SIGTERM.
//  6. Drain in-flight work and close connections on shutdown.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appCtx, err := config.InitAppContext(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application context: %v", err)
	}

	store := redisstore.New(appCtx.RedisClient)
	auditStore := audit.NewStore(appCtx.DB)

	if err := auditStore.InitializeTables(); err != nil {
		log.Fatalf("failed to initialize audit schema: %v", err)
	}

	coordinator := sale.New(sale.Config{
		StartTime:    cfg.SaleStartTime,
		EndTime:      cfg.SaleEndTime,
		TotalStock:   cfg.TotalStock,
		ProductName:  cfg.ProductName,
		ProductPrice: cfg.ProductPrice,
	}, store, nil)

	if err := coordinator.Initialize(appCtx.Ctx); err != nil {
		log.Fatalf("failed to initialize sale inventory: %v", err)
	}

	// Buffered channel absorbs bursts of purchase attempts without
	// blocking the request path on the audit write, mirroring the
	// teacher's checkoutJobChan/purchaseJobChan pattern.
	auditJobs := make(chan models.AuditJob, 1000)

	auditWorker := audit.NewWorker(auditStore, auditJobs, appCtx.WaitGroup)
	auditWorker.Start()

	reconciler := reconcile.New(ledger.New(store), auditStore)
	reconciler.Start(appCtx.Ctx)

	server := httpapi.NewServer(coordinator, auditJobs)
	mux := http.NewServeMux()
	server.Routes(mux)
	if os.Getenv("ENABLE_TEST_RESET") == "true" {
		log.Println("WARNING: /api/sale/reset is enabled; this is test-only tooling and must not be set in production")
		server.RoutesTestOnly(mux)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("flash-sale service listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	close(auditJobs)

	waited := make(chan struct{})
	go func() {
		appCtx.WaitGroup.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(10 * time.Second):
		log.Println("timed out waiting for background workers to drain")
	}

	appCtx.RedisClient.Close()
	appCtx.DB.Close()

	log.Println("server stopped gracefully")
}
