package study

import (
	"context"

	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/dataset"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) RegisterStudy(ctx context.Context, code, name string, actor string) error {
	if err := s.repo.UpsertStudy(ctx, code, name, "active"); err != nil {
		return err
	}
	_ = s.log(ctx, models.AuditLog{
		StudyID:  code,
		Actor:    actor,
		Action:   "study_registered",
		Entity:   "study",
		EntityID: code,
		Payload:  map[string]interface{}{"name": name},
	})
	return nil
}

func (s *Service) StoreSubjects(ctx context.Context, code string, subjects []*dataset.SubjectRecord, actor string) error {
	if err := s.repo.ReplaceSubjects(ctx, code, subjects); err != nil {
		return err
	}
	return s.log(ctx, models.AuditLog{
		StudyID:  code,
		Actor:    actor,
		Action:   "subjects_loaded",
		Entity:   "subject_set",
		EntityID: code,
		Payload:  map[string]interface{}{"count": len(subjects)},
	})
}

func (s *Service) StoreMeasurements(ctx context.Context, code string, records []dataset.MeasurementRecord, actor string) error {
	if err := s.repo.ReplaceMeasurements(ctx, code, records); err != nil {
		return err
	}
	return s.log(ctx, models.AuditLog{
		StudyID:  code,
		Actor:    actor,
		Action:   "measurements_loaded",
		Entity:   "measurement_set",
		EntityID: code,
		Payload:  map[string]interface{}{"count": len(records)},
	})
}

func (s *Service) LoadDataset(ctx context.Context, code string) (*dataset.Dataset, error) {
	return s.repo.LoadDataset(ctx, code)
}

func (s *Service) log(ctx context.Context, entry models.AuditLog) error {
	return s.repo.AppendAudit(ctx, entry)
}
