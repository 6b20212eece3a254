package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clinforge-ai/platform/pkg/common/models"
	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("study not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type studyModel struct {
	Code      string    `gorm:"primaryKey;column:code"`
	Name      string    `gorm:"column:name"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (studyModel) TableName() string { return "studies" }

type subjectModel struct {
	ID          uuid.UUID      `gorm:"primaryKey;column:id"`
	StudyCode   string         `gorm:"column:study_code;index:idx_subject_study"`
	SubjectCode string         `gorm:"column:subject_code;index:idx_subject_study"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (subjectModel) TableName() string { return "study_subjects" }

type measurementModel struct {
	ID          uuid.UUID      `gorm:"primaryKey;column:id"`
	StudyCode   string         `gorm:"column:study_code;index:idx_measurement_study"`
	SubjectCode string         `gorm:"column:subject_code;index:idx_measurement_study"`
	ParamCode   string         `gorm:"column:param_code"`
	VisitNum    int            `gorm:"column:visit_num"`
	Seq         int            `gorm:"column:seq"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (measurementModel) TableName() string { return "study_measurements" }

type auditModel struct {
	ID        uuid.UUID      `gorm:"primaryKey;column:id"`
	StudyCode string         `gorm:"column:study_code;index"`
	Actor     string         `gorm:"column:actor"`
	Action    string         `gorm:"column:action"`
	Entity    string         `gorm:"column:entity"`
	EntityID  string         `gorm:"column:entity_id"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (auditModel) TableName() string { return "study_audit_log" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&studyModel{}, &subjectModel{}, &measurementModel{}, &auditModel{})
}

func (r *Repository) UpsertStudy(ctx context.Context, code, name, status string) error {
	model := studyModel{Code: code, Name: name, Status: status, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *Repository) GetStudy(ctx context.Context, code string) (string, string, error) {
	var model studyModel
	err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return model.Name, model.Status, nil
}

// ReplaceSubjects swaps the stored subject-level dataset for a study. A
// re-submission replaces rather than appends; stale subjects would
// otherwise poison later derivation passes.
func (r *Repository) ReplaceSubjects(ctx context.Context, studyCode string, subjects []*dataset.SubjectRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("study_code = ?", studyCode).Delete(&subjectModel{}).Error; err != nil {
			return err
		}
		for _, subject := range subjects {
			payload, err := json.Marshal(subject)
			if err != nil {
				return fmt.Errorf("marshaling subject %s: %w", subject.SubjectID, err)
			}
			model := subjectModel{
				ID:          uuid.New(),
				StudyCode:   studyCode,
				SubjectCode: subject.SubjectID,
				Payload:     payload,
				CreatedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceMeasurements swaps the stored measurement rows for one study and
// domain-load. Seq preserves submission order so a reloaded dataset
// iterates identically to the original.
func (r *Repository) ReplaceMeasurements(ctx context.Context, studyCode string, records []dataset.MeasurementRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("study_code = ?", studyCode).Delete(&measurementModel{}).Error; err != nil {
			return err
		}
		for i, m := range records {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshaling measurement %s/%s: %w", m.SubjectID, m.ParamCode, err)
			}
			model := measurementModel{
				ID:          uuid.New(),
				StudyCode:   studyCode,
				SubjectCode: m.SubjectID,
				ParamCode:   m.ParamCode,
				VisitNum:    m.VisitNum,
				Seq:         i,
				Payload:     payload,
				CreatedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadDataset rebuilds the in-memory dataset for a study. Subjects are
// registered before measurements so orphan routing works.
func (r *Repository) LoadDataset(ctx context.Context, studyCode string) (*dataset.Dataset, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&studyModel{}).Where("code = ?", studyCode).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	ds := dataset.New(studyCode)

	var subjects []subjectModel
	if err := r.db.WithContext(ctx).
		Where("study_code = ?", studyCode).
		Order("subject_code asc").
		Find(&subjects).Error; err != nil {
		return nil, err
	}
	for _, model := range subjects {
		var subject dataset.SubjectRecord
		if err := json.Unmarshal(model.Payload, &subject); err != nil {
			return nil, fmt.Errorf("unmarshaling subject %s: %w", model.SubjectCode, err)
		}
		if err := ds.AddSubject(&subject); err != nil {
			return nil, err
		}
	}

	var measurements []measurementModel
	if err := r.db.WithContext(ctx).
		Where("study_code = ?", studyCode).
		Order("seq asc").
		Find(&measurements).Error; err != nil {
		return nil, err
	}
	for _, model := range measurements {
		var m dataset.MeasurementRecord
		if err := json.Unmarshal(model.Payload, &m); err != nil {
			return nil, fmt.Errorf("unmarshaling measurement %s: %w", model.ID, err)
		}
		ds.AddMeasurement(m)
	}

	return ds, nil
}

func (r *Repository) AppendAudit(ctx context.Context, entry models.AuditLog) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	model := auditModel{
		ID:        uuid.New(),
		StudyCode: entry.StudyID,
		Actor:     entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}
