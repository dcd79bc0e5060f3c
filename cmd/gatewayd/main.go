package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/simplifique/simplifique-gateway/internal/config"
	"github.com/simplifique/simplifique-gateway/internal/httpserver"
	"github.com/simplifique/simplifique-gateway/internal/ledger"
	ledgerasync "github.com/simplifique/simplifique-gateway/internal/ledger/async"
	ledgersql "github.com/simplifique/simplifique-gateway/internal/ledger/sqlite"
	"github.com/simplifique/simplifique-gateway/internal/logging"
	"github.com/simplifique/simplifique-gateway/internal/normalizer"
	"github.com/simplifique/simplifique-gateway/internal/simplifique"
	"github.com/simplifique/simplifique-gateway/internal/version"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	const maxLogBytes = int64(100 * 1024 * 1024)
	if logTarget := strings.TrimSpace(cfg.LogFile); logTarget != "" {
		rot, err := logging.NewRotatingWriter(logTarget, maxLogBytes)
		if err != nil {
			log.Fatalf("init rotating log: %v", err)
		}
		// Mirror to stdout as well for foreground runs
		log.SetOutput(io.MultiWriter(os.Stdout, rot))
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		log.SetPrefix("[gatewayd] ")
		defer rot.Close()
	}
	log.Printf("simplifique-gateway %s starting", version.FullInfo())

	backend, err := simplifique.New(simplifique.Config{
		BaseURL:        cfg.BackendBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		Policy:         simplifique.FailurePolicy(cfg.FailurePolicy),
	})
	if err != nil {
		log.Fatalf("init simplifique client: %v", err)
	}

	var ledgerStore ledger.Store
	if cfg.LedgerEnabled {
		store, err := ledgersql.New(cfg.LedgerPath)
		if err != nil {
			log.Fatalf("open ledger: %v", err)
		}
		wrapped := ledgerasync.New(store, ledgerasync.Config{Logger: log.Default()})
		defer wrapped.Close()
		ledgerStore = wrapped
		log.Printf("usage ledger enabled path=%s", cfg.LedgerPath)
	}

	knownModels := append(append([]string{}, normalizer.DefaultKnownModels...), cfg.ExtraModels...)
	server := httpserver.New(httpserver.Options{
		Normalizer:   normalizer.New(cfg.ExtraModels...),
		Backend:      backend,
		Ledger:       ledgerStore,
		Logger:       log.Default(),
		LogLevel:     cfg.LogLevel,
		ErrorMode:    httpserver.ErrorMode(cfg.ErrorMode),
		DefaultModel: cfg.DefaultModel,
		KnownModels:  knownModels,
	})

	addr := fmt.Sprintf(":%d", cfg.ListenPort)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s backend=%s policy=%s error_mode=%s",
			addr, cfg.BackendBaseURL, cfg.FailurePolicy, cfg.ErrorMode)
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}
}
