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
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"topology-impact-engine/pkg/api"
	"topology-impact-engine/pkg/clients/graph"
	"topology-impact-engine/pkg/clients/telemetry"
	"topology-impact-engine/pkg/config"
	"topology-impact-engine/pkg/logger"
	"topology-impact-engine/pkg/metrics"
	"topology-impact-engine/pkg/simulation"
	"topology-impact-engine/pkg/storage"
	"topology-impact-engine/pkg/worker"
)

// @title Topology Impact Engine API
// @version 1.0
// @description What-if analysis over a live microservice dependency graph: failure simulation, scaling projection, and structural risk ranking.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	if err := config.ValidateEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	log.Info("topology impact engine starting",
		"port", cfg.Server.Port,
		"graphEngineURL", cfg.GraphAPI.BaseURL,
		"decisionStore", cfg.SQLite.DBPath)

	store, err := storage.NewDecisionStore(cfg.SQLite.DBPath)
	if err != nil {
		log.Error("failed to initialize decision store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	graphClient := graph.NewClient(cfg.GraphAPI)
	telemetryClient := telemetry.NewClient(cfg)
	defer telemetryClient.Close()

	simService := simulation.NewService(cfg, graphClient, store)

	apiHandler := api.NewHandler(cfg, graphClient, simService)
	decisionsHandler := &api.DecisionsHandler{Store: store}
	telemetryHandler := &api.TelemetryHandler{Client: telemetryClient}
	rateLimiter := api.NewRateLimiter(cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Correlation-Id"},
		MaxAge:         300,
	}))
	r.Use(api.CorrelationMiddleware)

	r.Get("/health", apiHandler.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/swagger.json")
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)

		r.Get("/services", apiHandler.ServicesHandler)
		r.Get("/analysis/risk/top", apiHandler.TopRiskHandler)
		r.Post("/simulate/failure", apiHandler.SimulateFailureHandler)
		r.Post("/simulate/scaling", apiHandler.SimulateScalingHandler)
		r.Post("/simulate/add", apiHandler.SimulateAddHandler)
		r.Get("/dependency-graph/snapshot", apiHandler.DependencyGraphHandler)

		decisionsHandler.RegisterRoutes(r)
		r.Mount("/telemetry", telemetryHandler.Routes())
	})

	var pollWorker *worker.PollWorker
	if cfg.TelemetryWorker.Enabled {
		pollWorker = worker.NewPollWorker(cfg, graphClient, telemetryClient)
		pollWorker.Start()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("forced shutdown", "error", err)
	}
	if pollWorker != nil {
		pollWorker.Stop()
	}

	log.Info("server exited")
}
