package engine

import (
	"context"
	"errors"
	"time"

	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/shift"
	"github.com/clinforge-ai/platform/pkg/validate"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("derivation run not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type runModel struct {
	ID            uuid.UUID  `gorm:"primaryKey;column:id"`
	StudyCode     string     `gorm:"column:study_code;index"`
	Status        string     `gorm:"column:status"`
	Submittable   bool       `gorm:"column:submittable"`
	SubjectCount  int        `gorm:"column:subject_count"`
	RecordCount   int        `gorm:"column:record_count"`
	CriticalCount int        `gorm:"column:critical_count"`
	MajorCount    int        `gorm:"column:major_count"`
	MinorCount    int        `gorm:"column:minor_count"`
	Error         string     `gorm:"column:error"`
	StartedAt     time.Time  `gorm:"column:started_at"`
	FinishedAt    *time.Time `gorm:"column:finished_at"`
}

func (runModel) TableName() string { return "derivation_runs" }

type issueModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	RunID     uuid.UUID `gorm:"column:run_id;index"`
	Seq       int       `gorm:"column:seq"`
	Category  string    `gorm:"column:category"`
	Severity  string    `gorm:"column:severity"`
	SubjectID string    `gorm:"column:subject_id"`
	Variable  string    `gorm:"column:variable"`
	Message   string    `gorm:"column:message"`
}

func (issueModel) TableName() string { return "validation_issues" }

type shiftModel struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id"`
	RunID     uuid.UUID `gorm:"column:run_id;index"`
	Seq       int       `gorm:"column:seq"`
	Treatment string    `gorm:"column:treatment"`
	ParamCode string    `gorm:"column:param_code"`
	FromCat   string    `gorm:"column:from_cat"`
	ToCat     string    `gorm:"column:to_cat"`
	Count     int       `gorm:"column:subject_count"`
}

func (shiftModel) TableName() string { return "shift_rows" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{}, &issueModel{}, &shiftModel{})
}

func (r *Repository) CreateRun(ctx context.Context, run models.DerivationRun) error {
	model := runModel{
		ID:        run.ID,
		StudyCode: run.StudyID,
		Status:    run.Status,
		StartedAt: run.StartedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// CompleteRun persists the run outcome together with its issues and shift
// rows in one transaction. Issue Seq preserves report order, which is part
// of the determinism contract.
func (r *Repository) CompleteRun(ctx context.Context, run models.DerivationRun, report *validate.Report, rows []shift.Row) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		finishedAt := time.Now().UTC()
		updates := map[string]interface{}{
			"status":         run.Status,
			"submittable":    run.Submittable,
			"subject_count":  run.SubjectCount,
			"record_count":   run.RecordCount,
			"critical_count": run.CriticalCount,
			"major_count":    run.MajorCount,
			"minor_count":    run.MinorCount,
			"error":          run.Error,
			"finished_at":    finishedAt,
		}
		if err := tx.Model(&runModel{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
			return err
		}
		if report != nil {
			for i, issue := range report.Issues {
				model := issueModel{
					ID:        uuid.New(),
					RunID:     run.ID,
					Seq:       i,
					Category:  string(issue.Category),
					Severity:  string(issue.Severity),
					SubjectID: issue.SubjectID,
					Variable:  issue.Variable,
					Message:   issue.Message,
				}
				if err := tx.Create(&model).Error; err != nil {
					return err
				}
			}
		}
		for i, row := range rows {
			model := shiftModel{
				ID:        uuid.New(),
				RunID:     run.ID,
				Seq:       i,
				Treatment: row.Treatment,
				ParamCode: row.ParamCode,
				FromCat:   shift.Label(row.From),
				ToCat:     shift.Label(row.To),
				Count:     row.Count,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (models.DerivationRun, error) {
	var model runModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DerivationRun{}, ErrRunNotFound
	}
	if err != nil {
		return models.DerivationRun{}, err
	}
	return toRun(model), nil
}

func (r *Repository) ListRuns(ctx context.Context, studyCode string, limit int) ([]models.DerivationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runModel
	err := r.db.WithContext(ctx).
		Where("study_code = ?", studyCode).
		Order("started_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	runs := make([]models.DerivationRun, 0, len(rows))
	for _, model := range rows {
		runs = append(runs, toRun(model))
	}
	return runs, nil
}

func (r *Repository) GetReport(ctx context.Context, runID uuid.UUID) (*validate.Report, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var rows []issueModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	report := validate.NewReport(run.StudyID)
	report.GeneratedAt = run.StartedAt
	for _, model := range rows {
		report.Add(validate.Issue{
			Category:  validate.Category(model.Category),
			Severity:  validate.Severity(model.Severity),
			SubjectID: model.SubjectID,
			Variable:  model.Variable,
			Message:   model.Message,
		})
	}
	return report, nil
}

func (r *Repository) GetShiftRows(ctx context.Context, runID uuid.UUID) ([]shift.Row, error) {
	var rows []shiftModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]shift.Row, 0, len(rows))
	for _, model := range rows {
		out = append(out, shift.Row{
			Treatment: model.Treatment,
			ParamCode: model.ParamCode,
			From:      fromLabel(model.FromCat),
			To:        fromLabel(model.ToCat),
			Count:     model.Count,
		})
	}
	return out, nil
}

func fromLabel(label string) dataset.RangeIndicator {
	if label == "MISSING" {
		return dataset.RangeMissing
	}
	return dataset.RangeIndicator(label)
}

func toRun(model runModel) models.DerivationRun {
	return models.DerivationRun{
		ID:            model.ID,
		StudyID:       model.StudyCode,
		Status:        model.Status,
		Submittable:   model.Submittable,
		SubjectCount:  model.SubjectCount,
		RecordCount:   model.RecordCount,
		CriticalCount: model.CriticalCount,
		MajorCount:    model.MajorCount,
		MinorCount:    model.MinorCount,
		Error:         model.Error,
		StartedAt:     model.StartedAt,
		FinishedAt:    model.FinishedAt,
	}
}
