package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/bbs/internal/api"
	"github.com/dyluth/bbs/internal/config"
	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/lockstring"
	"github.com/dyluth/bbs/pkg/bbs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load configuration (BBS_CONFIG, then ./bbs.yml, then environment)
	cfg, err := config.Load(os.Getenv("BBS_CONFIG"), ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// 2. Create store client
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}
	client, err := bbs.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create store client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	client.SetMaxTxRetries(cfg.MaxTxRetries)

	// 3. Verify Redis connectivity
	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 4. Create engine
	engineConfig, err := cfg.Engine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	eng, err := engine.New(client, client, client, client, lockstring.New(), engineConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create engine: %v\n", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(eng, client, cfg.Instance).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 5. Setup graceful shutdown
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API] Listening on %s for instance '%s'", cfg.Listen, cfg.Instance)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		log.Printf("[API] Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[API] Shutdown error: %v", err)
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}

	log.Printf("[API] Stopped")
}
