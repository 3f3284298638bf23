package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/username/aegisnode/backend/src/config"
	"github.com/username/aegisnode/backend/src/database"
	"github.com/username/aegisnode/backend/src/handlers"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter *rate.Limiter

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == config.Cfg.AllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("AegisNode backend server starting...")

	limiter = rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	store, err := database.InitDB(config.Cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	aegisClient := services.NewAegisClient(config.Cfg.AegisAIURL, config.Cfg.AegisAITimeout)
	scorer := services.NewScorerService(aegisClient, config.Cfg.ReasonCacheTTL)
	hub := services.NewDashboardHub()
	attackService := services.NewAttackService(scorer, store, hub)
	fillerService := services.NewFillerService(scorer, store)

	attackHandler := handlers.NewAttackHandler(attackService, store)
	dashboardHandler := handlers.NewDashboardHandler(hub, attackService, store)
	fillerHandler := handlers.NewFillerHandler(fillerService)
	txHandler := handlers.NewTransactionHandler(store, scorer)
	systemHandler := handlers.NewSystemHandler(scorer)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/v1/attack/start", attackHandler.StartAttack)
	apiRouter.HandleFunc("GET /api/v1/attack/history", attackHandler.ListAttackHistory)
	apiRouter.HandleFunc("GET /api/v1/stats", dashboardHandler.GetStats)
	apiRouter.HandleFunc("GET /api/v1/dashboard/counts", dashboardHandler.GetDashboardCounts)
	apiRouter.HandleFunc("POST /api/v1/filler/start", fillerHandler.StartFiller)
	apiRouter.HandleFunc("POST /api/v1/filler/stop", fillerHandler.StopFiller)
	apiRouter.HandleFunc("GET /api/v1/filler/status", fillerHandler.GetFillerStatus)
	apiRouter.HandleFunc("GET /api/v1/transactions", txHandler.ListTransactions)
	apiRouter.HandleFunc("GET /api/v1/transactions/{txn_id}", txHandler.GetTransaction)
	apiRouter.HandleFunc("GET /api/v1/transactions/{txn_id}/reason", txHandler.GetTransactionReason)
	apiRouter.HandleFunc("POST /api/v1/transactions/{txn_id}/review", txHandler.ReviewTransaction)
	apiRouter.HandleFunc("GET /api/v1/model/status", systemHandler.GetModelStatus)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("GET /ws/attack", attackHandler.HandleAttackSocket)
	rootMux.HandleFunc("GET /ws/dashboard", dashboardHandler.HandleDashboardSocket)

	rootMux.HandleFunc("GET /health", systemHandler.HealthCheck)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "AegisNode Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
