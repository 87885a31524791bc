package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MediaMash/buildly-core/internal/accounts"
	"github.com/MediaMash/buildly-core/internal/config"
	"github.com/MediaMash/buildly-core/internal/notify"
	"github.com/MediaMash/buildly-core/internal/obs"
	"github.com/MediaMash/buildly-core/internal/store/pg"
	"github.com/MediaMash/buildly-core/internal/tokens"
	"github.com/MediaMash/buildly-core/internal/workflow"
)

var version = "0.3.0"

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("missing DSN: set BUILDLY_PG_DSN")
	}

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("BUILDLY_COMMIT"))

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	signer, err := tokens.NewSigner(cfg.TokenSecret)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	opts := []accounts.ServiceOption{
		accounts.WithLinks(accounts.Links{
			FrontendURL:           cfg.FrontendURL,
			RegistrationPath:      cfg.RegistrationPath,
			ResetConfirmPath:      cfg.ResetConfirmPath,
			EventLoginPath:        cfg.EventLoginPath,
			EventRegistrationPath: cfg.EventRegistrationPath,
		}),
		accounts.WithRenderer(notify.NewRenderer(store.Templates(), defaultOrgID(store, cfg.DefaultOrganization))),
	}

	var notifier *notify.AMQPNotifier
	if cfg.AMQPURL != "" {
		notifier, err = notify.DialAMQP(cfg.AMQPURL, cfg.EmailQueue)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer notifier.Close()
		opts = append(opts, accounts.WithNotifier(notifier))
	} else {
		obs.LogEvent("warn", "notification broker not configured, dispatch disabled", nil)
	}

	// Construct the service eagerly so wiring mistakes surface at boot
	// instead of on the first request.
	if _, err := accounts.NewService(store, signer, opts...); err != nil {
		log.Fatalf("accounts service: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting buildly-core %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// defaultOrgID resolves the fallback template tenant by name. A missing
// record just disables the fallback tier.
func defaultOrgID(store *pg.Store, name string) string {
	if name == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	org, err := store.Organizations(ctx).FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, workflow.ErrNotFound) {
			obs.LogEvent("warn", "default organization lookup failed", map[string]any{"error": err.Error()})
		}
		return ""
	}
	return org.ID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
