// Command ccfallback runs the Anthropic Messages API fallback gateway:
// POST /v1/messages proxies to Anthropic first and falls back through a
// configured provider chain on failure, and /admin/* exposes the CRUD
// surface over the persisted KV state. Grounded on the teacher's
// cmd/rad-gateway/main.go wiring style: optional subsystems (Postgres,
// Redis, Cedar, tracing, audit) are each attempted independently and
// degrade to a safe default with a warning log rather than failing
// startup.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ccfallback/internal/admin"
	"ccfallback/internal/adminauthz"
	"ccfallback/internal/audit"
	"ccfallback/internal/breaker"
	"ccfallback/internal/config"
	"ccfallback/internal/kvstore"
	"ccfallback/internal/logger"
	"ccfallback/internal/obs"
	"ccfallback/internal/routing"
)

func main() {
	logger.Init(logger.DefaultConfig())
	log := logger.WithComponent("main")

	store, driverUsed, err := kvstore.NewWithFallback(kvstore.Config{
		Driver: getenv("CCFALLBACK_DB_DRIVER", "sqlite"),
		DSN:    getenv("CCFALLBACK_DB_DSN", ""),
	})
	if err != nil {
		log.Error("failed to open kv store, running in-memory", "error", err.Error())
		store = kvstore.NewMemory()
		driverUsed = "memory"
	}
	defer store.Close()
	log.Info("kv store ready", "driver", driverUsed)

	if redisAddr := getenv("CCFALLBACK_REDIS_ADDR", ""); redisAddr != "" {
		redisStore, err := kvstore.NewRedis(kvstore.RedisConfig{Addr: redisAddr})
		if err != nil {
			log.Warn("redis kv store connection failed, keeping primary store", "error", err.Error())
		} else {
			log.Info("redis kv store connected, using for breaker/config state", "addr", redisAddr)
			defer redisStore.Close()
			store = redisStore
		}
	}

	shutdownTracing, err := obs.Init(context.Background(), getenv("CCFALLBACK_OTLP_ENDPOINT", ""))
	if err != nil {
		log.Warn("tracing init failed, continuing without it", "error", err.Error())
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	var auditSink audit.Sink = audit.NoopSink{}
	if brokers := getenv("CCFALLBACK_KAFKA_BROKERS", ""); brokers != "" {
		kafkaSink, err := audit.NewKafkaSink(strings.Split(brokers, ","))
		if err != nil {
			log.Warn("kafka audit sink connection failed, audit events will be dropped", "error", err.Error())
		} else {
			defer kafkaSink.Close()
			auditSink = kafkaSink
			log.Info("kafka audit sink ready", "brokers", brokers)
		}
	}

	var pdp *adminauthz.PolicyDecisionPoint
	if policyPath := getenv("CCFALLBACK_CEDAR_POLICY_PATH", ""); policyPath != "" {
		pdp, err = adminauthz.LoadPolicyDecisionPoint(policyPath)
		if err != nil {
			log.Warn("cedar policy load failed, admin authorization left to the bearer token alone", "error", err.Error())
			pdp = nil
		} else {
			log.Info("cedar policy decision point loaded", "path", policyPath)
		}
	}

	var jwtVerifier *adminauthz.JWTVerifier
	if secret := getenv("CCFALLBACK_ADMIN_JWT_SECRET", ""); secret != "" {
		jwtVerifier = adminauthz.NewJWTVerifier(secret)
		log.Info("admin jwt verification enabled")
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		log.Warn("ADMIN_TOKEN is unset; admin surface will reject every request")
	}
	authorizer := adminauthz.New(adminToken, jwtVerifier, pdp)

	b := breaker.New(store)
	engine := routing.NewEngine(b)
	engine.Audit = auditSink

	adminHandlers := admin.NewHandlers(store, b, authorizer, &http.Client{Timeout: 15 * time.Second})

	mux := http.NewServeMux()
	adminHandlers.Register(mux)

	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg := config.Load(r.Context(), store)
		engine.HandleMessages(w, r, cfg)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		cfg := config.Load(r.Context(), store)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ccfallback: ok, %d fallback provider(s) configured\n", len(cfg.Providers))
	})

	addr := ":" + getenv("PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       35 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("ccfallback starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
