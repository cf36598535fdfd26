package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"

	"hnjobs-engine/internal/cache"
	"hnjobs-engine/internal/config"
	"hnjobs-engine/internal/engine"
	"hnjobs-engine/internal/events"
	"hnjobs-engine/internal/fetch"
	"hnjobs-engine/internal/httpapi"
	"hnjobs-engine/internal/scheduler"
	"hnjobs-engine/internal/store"
)

func main() {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	dataDir := os.Getenv("HNJOBS_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine per data dir: a second refresh loop against the same store
	// would break the cycle's no-overlap guarantee.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("data dir lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance already holds %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	config.OverlayEnv(&cfg)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	dbPath := filepath.Join(dataDir, "postings.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	hub := events.NewHub()
	limiter := fetch.NewHostLimiter(cfg.Source.HostRatePerSec, cfg.Source.HostBurst)
	fetcher := fetch.New(time.Duration(cfg.Source.TimeoutSeconds)*time.Second, limiter)
	snap := cache.New(time.Duration(cfg.Cache.TTLSeconds) * time.Second)

	eng := engine.New(cfg, db, fetcher, snap, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Every(ctx, time.Duration(cfg.Polling.IntervalMinutes)*time.Minute, "refresh", func(ctx context.Context) error {
		_, err := eng.RunRefreshCycle(ctx)
		if errors.Is(err, engine.ErrRefreshRunning) {
			// an on-demand run is in flight; the next tick will catch up
			return nil
		}
		return err
	})

	mux := httpapi.NewMux(httpapi.Deps{Engine: eng, Hub: hub, Cfg: cfg})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("engine listening on :%d (db=%s, interval=%dm)", cfg.App.Port, dbPath, cfg.Polling.IntervalMinutes)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
