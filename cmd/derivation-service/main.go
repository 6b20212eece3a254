package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinforge-ai/platform/pkg/auth"
	"github.com/clinforge-ai/platform/pkg/common/config"
	"github.com/clinforge-ai/platform/pkg/common/database"
	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/engine"
	"github.com/clinforge-ai/platform/pkg/middleware"
	"github.com/clinforge-ai/platform/pkg/observability/metrics"
	"github.com/clinforge-ai/platform/pkg/study"
	"github.com/clinforge-ai/platform/pkg/terminology"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	runRepo := engine.NewRepository(db)
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate run tables")
	}
	studyRepo := study.NewRepository(db)
	if err := studyRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate study tables")
	}

	catalog, err := terminology.Load(cfg.ParameterCatalog)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default parameter catalog")
	}

	eng, err := engine.New(engine.ConfigFromPlatform(cfg, catalog))
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid derivation configuration")
	}

	cache := engine.NewStatusCache(database.GetRedis(), cfg.RunStatusTTL)
	service := engine.NewService(eng, runRepo, study.NewService(studyRepo), cache)
	handler := engine.NewHTTPHandler(service)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	if cfg.OIDCIssuer != "" {
		oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("invalid OIDC configuration")
		}
		router.Use(middleware.Authenticate(oidcAuth))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/adam").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.DerivationServicePort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Derivation service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start derivation service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down derivation service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Derivation service forced to shutdown")
	}
	logger.Log.Info("Derivation service stopped")
}
