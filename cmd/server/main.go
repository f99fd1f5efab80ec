/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the voucher engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env / environment configuration, apply flag overrides
  2. Open the voucher store (flat-file CSV or SQLite)
  3. Open the station, discount, and audit registries under the data dir
  4. Wire the lifecycle controller and HTTP handler
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (overrides PORT)
  -data      Data directory (overrides DATA_DIR)
  -backend   Voucher store backend: flatfile or sqlite

ENVIRONMENT:
  PORT, DATA_DIR, PERSISTENCE_BACKEND, ENFORCE_PHASES, OPS_TOKEN, BASE_URL.
  A .env file in the working directory is honored.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - lifecycle/controller.go: Voucher state machine
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unifleet/voucher-engine/api"
	"github.com/unifleet/voucher-engine/assets"
	"github.com/unifleet/voucher-engine/audit"
	"github.com/unifleet/voucher-engine/config"
	"github.com/unifleet/voucher-engine/discount"
	"github.com/unifleet/voucher-engine/lifecycle"
	"github.com/unifleet/voucher-engine/station"
	"github.com/unifleet/voucher-engine/store/flatfile"
	"github.com/unifleet/voucher-engine/store/sqlite"
	"github.com/unifleet/voucher-engine/voucher"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dataDir := flag.String("data", cfg.DataDir, "data directory")
	backend := flag.String("backend", cfg.Backend, "voucher store backend: flatfile or sqlite")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.WithError(err).Fatal("create data directory")
	}

	// Voucher store
	var (
		store voucher.Store
		err   error
	)
	switch *backend {
	case "sqlite":
		store, err = sqlite.New(filepath.Join(*dataDir, "vouchers.db"))
	case "flatfile":
		store = flatfile.New(filepath.Join(*dataDir, "vouchers.csv"))
	default:
		logger.Fatalf("unknown backend %q (want flatfile or sqlite)", *backend)
	}
	if err != nil {
		logger.WithError(err).Fatal("open voucher store")
	}
	defer store.Close()

	// Registries and logs
	stations, err := station.New(filepath.Join(*dataDir, "station_prices.json"))
	if err != nil {
		logger.WithError(err).Fatal("open station registry")
	}
	priceHistory, err := station.NewHistory(filepath.Join(*dataDir, "price_history.csv"))
	if err != nil {
		logger.WithError(err).Fatal("open price history")
	}
	discounts, err := discount.New(
		filepath.Join(*dataDir, "station_discounts.json"),
		filepath.Join(*dataDir, "discount_history.csv"),
	)
	if err != nil {
		logger.WithError(err).Fatal("open discount registry")
	}
	auditLog, err := audit.New(filepath.Join(*dataDir, "voucher_audit.csv"), logger)
	if err != nil {
		logger.WithError(err).Fatal("open audit log")
	}

	qr := assets.NewQRGenerator(filepath.Join(*dataDir, "qrcodes"), cfg.BaseURL)

	controller := lifecycle.New(lifecycle.Config{
		Store:            store,
		Stations:         stations,
		Discounts:        discounts,
		Audit:            auditLog,
		Assets:           qr,
		StrictRedemption: cfg.StrictRedemption,
		Logger:           logger,
	})

	handler := &api.Handler{
		Controller:    controller,
		Store:         store,
		Stations:      stations,
		PriceHistory:  priceHistory,
		Discounts:     discounts,
		Audit:         auditLog,
		Assets:        qr,
		Logger:        logger,
		OpsToken:      cfg.OpsToken,
		SupplierToken: cfg.SupplierToken,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    *port,
			"backend": *backend,
			"strict":  cfg.StrictRedemption,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("forced shutdown")
	}

	logger.Info("server stopped")
}
