package ingestion

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusAccepted  = "accepted"
	StatusLoaded    = "loaded"
	StatusPublished = "published"
	StatusFailed    = "failed"
)

// Submission is one accepted SDTM domain payload, kept for audit and
// replay until cleanup.
type Submission struct {
	ID          string         `json:"id" gorm:"primaryKey;column:id"`
	StudyCode   string         `json:"study_code" gorm:"column:study_code;index"`
	Domain      string         `json:"domain" gorm:"column:domain"`
	Format      string         `json:"format" gorm:"column:format"`
	Payload     datatypes.JSON `json:"payload" gorm:"column:payload"`
	RecordCount int            `json:"record_count" gorm:"column:record_count"`
	IssueCount  int            `json:"issue_count" gorm:"column:issue_count"`
	Status      string         `json:"status" gorm:"column:status"`
	Error       string         `json:"error,omitempty" gorm:"column:error"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"column:updated_at"`
	LastAttempt *time.Time     `json:"last_attempt,omitempty" gorm:"column:last_attempt"`
}

func (Submission) TableName() string {
	return "sdtm_submissions"
}
