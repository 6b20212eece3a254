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
	"github.com/clinforge-ai/platform/pkg/common/kafka"
	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/ingestion"
	"github.com/clinforge-ai/platform/pkg/middleware"
	"github.com/clinforge-ai/platform/pkg/observability/metrics"
	"github.com/clinforge-ai/platform/pkg/sdtm"
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

	subRepo := ingestion.NewRepository(db)
	if err := subRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate submission tables")
	}
	studyRepo := study.NewRepository(db)
	if err := studyRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate study tables")
	}

	catalog, err := terminology.Load(cfg.ParameterCatalog)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default parameter catalog")
	}

	validator := ingestion.NewValidator(
		[]string{"DM", "EX", "LB", "VS", "DS"},
		[]string{"csv", "json"},
	)
	loader := sdtm.NewLoader(catalog)
	producer := kafka.NewProducer(cfg.StudyLoadedTopic)
	defer producer.Close()
	dlq := kafka.NewProducer(cfg.IngestionDLQTopic)
	defer dlq.Close()

	service := ingestion.NewService(validator, loader, subRepo, study.NewService(studyRepo), producer, dlq)
	handler := ingestion.NewHTTPHandler(service, cfg.MaxRequestBody)

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

	api := router.PathPrefix("/api/v1/sdtm").Subrouter()
	handler.Register(api)

	address := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.IngestionServicePort)
	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithField("addr", address).Info("Ingestion service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start ingestion service")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down ingestion service...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Ingestion service forced to shutdown")
	}
	logger.Log.Info("Ingestion service stopped")
}
