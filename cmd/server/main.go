package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/compliance"
	"github.com/fundwatch/compliance-engine/internal/metrics"
	"github.com/fundwatch/compliance-engine/internal/pretrade"
	"github.com/fundwatch/compliance-engine/internal/store"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Regulatory limits ---
	limits := limitsFromEnv()
	evaluator, err := compliance.NewEvaluator(limits)
	if err != nil {
		slog.Error("invalid limit configuration", "err", err)
		os.Exit(1)
	}
	slog.Info("limits configured",
		"issuer_limit_pct", limits.IssuerLimitPct.String(),
		"group_limit_pct", limits.GroupLimitPct.String(),
		"bucket_threshold_pct", limits.BucketThresholdPct.String(),
		"bucket_limit_pct", limits.BucketLimitPct.String(),
	)

	// --- WebSocket hub ---
	wsHub := pretrade.NewWSHub()
	go wsHub.Run()

	// --- Compliance service ---
	svc := pretrade.NewService(st, evaluator, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"compliance-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time compliance decisions.
		r.Get("/ws", wsHub.HandleWS)

		// Pre-trade compliance.
		r.Post("/check", svc.CheckTrade)
		r.Post("/trades", svc.RecordTrade)

		// Asset master data.
		r.Get("/assets", svc.ListAssets)
		r.Post("/assets", svc.CreateAsset)
		r.Get("/assets/{ticker}", svc.GetAsset)

		// Fund portfolios.
		r.Get("/funds/{fundID}/portfolio", svc.GetPortfolio)
		r.Get("/funds/{fundID}/exposures", svc.GetExposures)
		r.Get("/funds/{fundID}/checks", svc.GetCheckHistory)
		r.Post("/funds/{fundID}/positions", svc.UpsertPosition)
		r.Put("/funds/{fundID}/cash", svc.SetCash)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("compliance-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down compliance-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("compliance-engine stopped")
}

// limitsFromEnv reads limit overrides from the environment, falling back to
// the standard UCITS thresholds (10/20/5/40).
func limitsFromEnv() compliance.Limits {
	limits := compliance.DefaultLimits()
	limits.IssuerLimitPct = envDecimal("ISSUER_LIMIT_PCT", limits.IssuerLimitPct)
	limits.GroupLimitPct = envDecimal("GROUP_LIMIT_PCT", limits.GroupLimitPct)
	limits.BucketThresholdPct = envDecimal("BUCKET_THRESHOLD_PCT", limits.BucketThresholdPct)
	limits.BucketLimitPct = envDecimal("BUCKET_LIMIT_PCT", limits.BucketLimitPct)
	return limits
}

func envDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("invalid decimal in environment, using default", "key", key, "value", raw)
		return fallback
	}
	return v
}
