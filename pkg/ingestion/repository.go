package ingestion

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("submission not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Submission{})
}

func (r *Repository) Create(ctx context.Context, sub *Submission) error {
	sub.CreatedAt = time.Now().UTC()
	sub.UpdatedAt = sub.CreatedAt
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"updated_at":   time.Now().UTC(),
			"last_attempt": time.Now().UTC(),
		}).Error
}

func (r *Repository) UpdateCounts(ctx context.Context, id string, records, issues int) error {
	return r.db.WithContext(ctx).Model(&Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"record_count": records,
			"issue_count":  issues,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	result := r.db.WithContext(ctx).First(&sub, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &sub, result.Error
}

func (r *Repository) CleanupExpired(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Submission{}).Error
}
