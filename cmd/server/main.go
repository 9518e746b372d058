/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the faucet engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (state slots, quotas, event log)
  3. Wire the engine (store, clock, transfer primitive, controller)
  4. Optionally publish a commitment from an allowlist file
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: faucet.db)
               Use ":memory:" for an in-memory database
  -controller  Controller identity (required)
  -allowlist   Optional allowlist JSON file; if given and no commitment is
               published yet, its commitment is rotated in at startup

TRANSFER PRIMITIVE:
  This binary wires a loopback transferer that only logs. Real deployments
  replace it with a client for their settlement rail; the engine treats it
  as adversarial either way.

EXAMPLES:
  ./server -db="./data/faucet.db" -controller="0xc0ffee" -allowlist=members.json

SEE ALSO:
  - api/server.go: Router configuration
  - faucet/engine.go: The engine being served
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/faucet-engine/api"
	"github.com/warp/faucet-engine/factory"
	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/logger"
	"github.com/warp/faucet-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "faucet.db", "SQLite database path")
	controller := flag.String("controller", "", "controller identity (required)")
	allowlistPath := flag.String("allowlist", "", "allowlist JSON file to publish at startup")
	flag.Parse()

	log := logger.Logger()

	if *controller == "" {
		log.Fatal().Msg("-controller is required")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Loopback transfer primitive: logs and succeeds.
	transfer := faucet.TransferFunc(func(_ context.Context, recipient faucet.Identity, amount faucet.Amount) error {
		log.Info().Str("recipient", string(recipient)).Str("amount", amount.String()).Msg("transfer")
		return nil
	})

	engine := faucet.NewEngine(store, store, faucet.SystemClock{}, transfer, faucet.Identity(*controller))

	// Publish an initial commitment if none is set yet.
	if *allowlistPath != "" {
		if err := publishAllowlist(context.Background(), engine, *allowlistPath); err != nil {
			log.Fatal().Err(err).Msg("failed to publish allowlist")
		}
	}

	handler := api.NewHandler(engine, store)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// publishAllowlist rotates in the commitment from an allowlist file unless
// one is already published.
func publishAllowlist(ctx context.Context, engine *faucet.Engine, path string) error {
	current, err := engine.Commitment(ctx)
	if err != nil {
		return err
	}
	log := logger.Logger()
	if !current.IsZero() {
		log.Info().Str("root", current.Root.String()).Msg("commitment already published, skipping allowlist")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	list, err := factory.NewAllowlistFactory().ParseAllowlist(string(data))
	if err != nil {
		return err
	}

	commitment := list.Commitment()
	if err := engine.Rotate(ctx, engine.Controller(), commitment.Root, commitment.Depth); err != nil {
		return err
	}
	log.Info().
		Str("root", commitment.Root.String()).
		Uint("depth", commitment.Depth).
		Int("members", len(list.Members)).
		Msg("commitment published")
	return nil
}
