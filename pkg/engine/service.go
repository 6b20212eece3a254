package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/observability/metrics"
	"github.com/clinforge-ai/platform/pkg/shift"
	"github.com/clinforge-ai/platform/pkg/study"
	"github.com/clinforge-ai/platform/pkg/validate"
	"github.com/google/uuid"
)

// Service drives derivation runs end to end: load the stored study, run
// the engine, persist the outcome, refresh the status cache.
type Service struct {
	engine  *Engine
	runs    *Repository
	studies *study.Service
	cache   *StatusCache
}

func NewService(engine *Engine, runs *Repository, studies *study.Service, cache *StatusCache) *Service {
	return &Service{engine: engine, runs: runs, studies: studies, cache: cache}
}

func (s *Service) RunStudy(ctx context.Context, studyCode string, actor string) (models.DerivationRun, error) {
	run := models.DerivationRun{
		ID:        uuid.New(),
		StudyID:   studyCode,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return models.DerivationRun{}, fmt.Errorf("creating run: %w", err)
	}
	metrics.RunStarted()
	s.cacheStatus(ctx, run)

	ds, err := s.studies.LoadDataset(ctx, studyCode)
	if err != nil {
		return s.failRun(ctx, run, fmt.Errorf("loading dataset: %w", err))
	}

	result := s.engine.Run(ds)

	run.Status = models.RunStatusCompleted
	run.Submittable = result.Report.Submittable()
	run.SubjectCount = result.Derived.SubjectCount()
	run.RecordCount = result.Derived.MeasurementCount()
	run.CriticalCount = result.Report.CountBySeverity(validate.SeverityCritical)
	run.MajorCount = result.Report.CountBySeverity(validate.SeverityMajor)
	run.MinorCount = result.Report.CountBySeverity(validate.SeverityMinor)

	if err := s.runs.CompleteRun(ctx, run, result.Report, result.Shift); err != nil {
		return s.failRun(ctx, run, fmt.Errorf("persisting run: %w", err))
	}
	metrics.RunCompleted(run.CriticalCount, run.MajorCount, run.MinorCount)
	s.cacheStatus(ctx, run)

	logger.WithStudy(studyCode).WithFields(map[string]interface{}{
		"run_id":      run.ID.String(),
		"submittable": run.Submittable,
		"critical":    run.CriticalCount,
		"major":       run.MajorCount,
		"minor":       run.MinorCount,
		"actor":       actor,
	}).Info("derivation run completed")

	return run, nil
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (models.DerivationRun, error) {
	return s.runs.GetRun(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, studyCode string, limit int) ([]models.DerivationRun, error) {
	return s.runs.ListRuns(ctx, studyCode, limit)
}

func (s *Service) GetReport(ctx context.Context, runID uuid.UUID) (*validate.Report, error) {
	return s.runs.GetReport(ctx, runID)
}

func (s *Service) GetShiftRows(ctx context.Context, runID uuid.UUID) ([]shift.Row, error) {
	return s.runs.GetShiftRows(ctx, runID)
}

func (s *Service) Status(ctx context.Context, studyCode string) (models.RunStatus, bool, error) {
	return s.cache.Get(ctx, studyCode)
}

func (s *Service) failRun(ctx context.Context, run models.DerivationRun, cause error) (models.DerivationRun, error) {
	run.Status = models.RunStatusFailed
	run.Error = cause.Error()
	if err := s.runs.CompleteRun(ctx, run, nil, nil); err != nil {
		logger.Log.WithError(err).Error("failed to mark run as failed")
	}
	metrics.RunFailed()
	s.cacheStatus(ctx, run)
	return run, cause
}

func (s *Service) cacheStatus(ctx context.Context, run models.DerivationRun) {
	status := models.RunStatus{
		RunID:     run.ID.String(),
		StudyID:   run.StudyID,
		Status:    run.Status,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, status); err != nil {
		logger.Log.WithError(err).Warn("failed to cache run status")
	}
}
