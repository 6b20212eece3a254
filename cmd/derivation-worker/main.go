package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinforge-ai/platform/pkg/common/config"
	"github.com/clinforge-ai/platform/pkg/common/database"
	"github.com/clinforge-ai/platform/pkg/common/kafka"
	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/engine"
	"github.com/clinforge-ai/platform/pkg/observability/metrics"
	"github.com/clinforge-ai/platform/pkg/study"
	"github.com/clinforge-ai/platform/pkg/terminology"
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

	dlq := kafka.NewProducer(cfg.DerivationDLQTopic)
	defer dlq.Close()

	consumer := kafka.NewConsumer(cfg.StudyLoadedTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, event models.Event) error {
		studyCode, _ := event.Data["study_code"].(string)
		if studyCode == "" {
			logger.Log.WithField("event_id", event.ID).Warn("study-loaded event without study_code; dropping")
			return nil
		}

		run, err := service.RunStudy(ctx, studyCode, "derivation-worker")
		if err != nil {
			logger.WithStudy(studyCode).WithError(err).Error("derivation run failed")
			payload := map[string]interface{}{
				"event_id":   event.ID,
				"study_code": studyCode,
				"error":      err.Error(),
			}
			if dlqErr := dlq.PublishEvent(ctx, "derivation-dlq", studyCode, payload); dlqErr != nil {
				logger.Log.WithError(dlqErr).Error("failed to push failed run to DLQ")
			}
			// Consider the event handled; retrying a deterministic failure
			// would loop forever.
			return nil
		}

		logger.WithStudy(studyCode).WithField("run_id", run.ID.String()).Info("derivation run finished")
		return nil
	}

	go func() {
		logger.Log.WithField("topic", cfg.StudyLoadedTopic).Info("Derivation worker consuming")
		if err := consumer.Consume(ctx, handler); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down derivation worker...")
	cancel()
	logger.Log.Info("Derivation worker stopped")
}
