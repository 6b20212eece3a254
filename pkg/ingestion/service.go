package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clinforge-ai/platform/pkg/common/kafka"
	"github.com/clinforge-ai/platform/pkg/common/logger"
	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/observability/metrics"
	"github.com/clinforge-ai/platform/pkg/sdtm"
	"github.com/clinforge-ai/platform/pkg/study"
	"github.com/clinforge-ai/platform/pkg/validate"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubjectDomains are the SDTM domains loaded into subject-level records;
// everything else accepted is a repeated-measures domain.
var SubjectDomains = map[string]struct{}{"DM": {}}

type Service struct {
	validator *Validator
	loader    *sdtm.Loader
	repo      *Repository
	studies   *study.Service
	producer  *kafka.Producer
	dlq       *kafka.Producer
}

func NewService(validator *Validator, loader *sdtm.Loader, repo *Repository, studies *study.Service, producer *kafka.Producer, dlq *kafka.Producer) *Service {
	return &Service{
		validator: validator,
		loader:    loader,
		repo:      repo,
		studies:   studies,
		producer:  producer,
		dlq:       dlq,
	}
}

// Process accepts one SDTM domain submission: validate the envelope, map
// rows into the dataset model, persist, then announce the load on the bus.
// Structural row problems do not fail the submission; they are returned so
// the submitter sees exactly which records were excluded.
func (s *Service) Process(ctx context.Context, req models.SubmitRequest) (*models.SubmitResponse, []validate.Issue, error) {
	if err := s.validator.Validate(req); err != nil {
		metrics.SubmissionFailed()
		return nil, nil, err
	}

	rows, err := s.rows(req)
	if err != nil {
		metrics.SubmissionFailed()
		return nil, nil, ValidationError{reason: err}
	}

	id := uuid.New().String()
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling submission payload: %w", err)
	}
	sub := &Submission{
		ID:          id,
		StudyCode:   req.StudyID,
		Domain:      strings.ToUpper(req.Domain),
		Format:      strings.ToLower(req.Format),
		Payload:     datatypes.JSON(payload),
		RecordCount: len(rows),
		Status:      StatusAccepted,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("persisting submission: %w", err)
	}

	issues, loadErr := s.load(ctx, sub.Domain, req.StudyID, rows)
	if loadErr != nil {
		_ = s.repo.UpdateStatus(ctx, id, StatusFailed, loadErr.Error())
		metrics.SubmissionFailed()
		return nil, nil, loadErr
	}
	_ = s.repo.UpdateCounts(ctx, id, len(rows), len(issues))
	_ = s.repo.UpdateStatus(ctx, id, StatusLoaded, "")

	event := map[string]interface{}{
		"submission_id": id,
		"study_code":    req.StudyID,
		"domain":        sub.Domain,
		"record_count":  len(rows),
		"issue_count":   len(issues),
		"received_at":   time.Now().UTC(),
	}
	if sendErr := s.producer.PublishEvent(ctx, "study-loaded", sub.Domain, event); sendErr != nil {
		logger.Log.WithError(sendErr).Error("failed to publish study-loaded event")
		_ = s.repo.UpdateStatus(ctx, id, StatusFailed, sendErr.Error())
		if s.dlq != nil {
			if dlqErr := s.dlq.PublishEvent(ctx, "study-loaded-dlq", sub.Domain, event); dlqErr != nil {
				logger.Log.WithError(dlqErr).Error("failed to push event to DLQ")
			}
		}
		metrics.SubmissionFailed()
		return nil, nil, fmt.Errorf("publishing event: %w", sendErr)
	}
	_ = s.repo.UpdateStatus(ctx, id, StatusPublished, "")
	metrics.SubmissionAccepted(len(rows))

	resp := &models.SubmitResponse{
		ID:        id,
		StudyID:   req.StudyID,
		Status:    StatusPublished,
		Timestamp: time.Now().UTC(),
	}
	return resp, issues, nil
}

func (s *Service) Status(ctx context.Context, id string) (*Submission, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) rows(req models.SubmitRequest) ([]map[string]string, error) {
	if strings.TrimSpace(req.Raw) != "" {
		rows, err := sdtm.ParseCSV(strings.NewReader(req.Raw))
		if err != nil {
			return nil, fmt.Errorf("parsing csv payload: %w", err)
		}
		return rows, nil
	}
	return sdtm.NormalizeRows(req.Records), nil
}

func (s *Service) load(ctx context.Context, domain, studyCode string, rows []map[string]string) ([]validate.Issue, error) {
	if err := s.studies.RegisterStudy(ctx, studyCode, "", "ingestion"); err != nil {
		return nil, fmt.Errorf("registering study: %w", err)
	}

	if _, subjectLevel := SubjectDomains[domain]; subjectLevel {
		subjects, issues := s.loader.Subjects(studyCode, rows)
		if err := s.studies.StoreSubjects(ctx, studyCode, subjects, "ingestion"); err != nil {
			return nil, fmt.Errorf("storing subjects: %w", err)
		}
		return issues, nil
	}

	measurements, issues := s.loader.Measurements(studyCode, rows)
	if err := s.studies.StoreMeasurements(ctx, studyCode, measurements, "ingestion"); err != nil {
		return nil, fmt.Errorf("storing measurements: %w", err)
	}
	return issues, nil
}
