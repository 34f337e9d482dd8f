package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hypveg/chat-gateway/internal/config"
	"github.com/hypveg/chat-gateway/internal/gateway"
	"github.com/hypveg/chat-gateway/internal/oauth"
	"github.com/hypveg/chat-gateway/internal/ratelimit"
	"github.com/hypveg/chat-gateway/internal/session"
	"github.com/hypveg/chat-gateway/internal/telemetry"
	"github.com/hypveg/chat-gateway/internal/upstream"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	cfg := loader.Config()
	loader.OnReload(func() {
		logger.Info("configuration reloaded")
	})

	// Session secret. A per-boot random secret keeps the gateway usable
	// without configuration, at the cost of invalidating sessions on restart.
	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
		logger.Warn("no session secret configured, sessions will not survive restarts")
	}
	codec := session.NewCodec(secret)

	// Rate-limit store: Redis when configured, per-process memory otherwise.
	var store ratelimit.Store = ratelimit.NewMemory()
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, falling back to in-memory rate limiting", "error", err)
		} else {
			logger.Info("redis connected")
			store = ratelimit.NewRedis(rdb)
		}
	}
	limiter := ratelimit.New(store, func() (user, anon ratelimit.Policy) {
		rl := loader.Config().RateLimit
		user = ratelimit.Policy{Name: "user", Limit: int64(rl.UserPerMinute), Window: time.Minute}
		anon = ratelimit.Policy{Name: "anon", Limit: int64(rl.AnonPerMinute), Window: time.Minute}
		return user, anon
	})

	metrics := telemetry.NewMetrics()
	client := upstream.NewClient(func() upstream.Settings {
		up := loader.Config().Upstream
		return upstream.Settings{
			BaseURL:      up.BaseURL,
			APIKey:       up.APIKey,
			Model:        up.Model,
			SystemPrompt: up.SystemPrompt,
			MaxTokens:    up.MaxTokens,
			Temperature:  up.Temperature,
		}
	})

	handler := gateway.NewHandler(client, loader.Config, metrics)
	oauthHandler := oauth.NewHandler(oauth.NewRegistry(cfg.OAuth), codec, cfg.Session.CookieSecure)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(session.Middleware(codec, cfg.Session.CookieSecure))

	r.Get("/health", handler.Health)
	r.Get("/get-user", handler.GetUser)
	r.Get("/logout", handler.Logout)
	r.Get("/login/{provider}", oauthHandler.Login)
	r.Get("/auth/{provider}/callback", oauthHandler.Callback)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, metrics))
		r.Post("/generate", handler.Generate)
	})

	// Metrics are served on a separate port, never exposed to callers.
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}
