package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission intake models
type SubmitRequest struct {
	StudyID  string              `json:"study_id"`
	Domain   string              `json:"domain"` // DM, EX, LB, VS, DS
	Format   string              `json:"format"` // csv, json
	Records  []map[string]string `json:"records,omitempty"`
	Raw      string              `json:"raw,omitempty"` // delimited payload when format=csv
	Metadata map[string]string   `json:"metadata,omitempty"`
}

type SubmitResponse struct {
	ID        string    `json:"id"`
	StudyID   string    `json:"study_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // study-loaded, derivation-dlq
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Derivation run lifecycle
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type DerivationRun struct {
	ID            uuid.UUID  `json:"id"`
	StudyID       string     `json:"study_id"`
	Status        string     `json:"status"`
	Submittable   bool       `json:"submittable"`
	SubjectCount  int        `json:"subject_count"`
	RecordCount   int        `json:"record_count"`
	CriticalCount int        `json:"critical_count"`
	MajorCount    int        `json:"major_count"`
	MinorCount    int        `json:"minor_count"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type RunStatus struct {
	RunID     string    `json:"run_id"`
	StudyID   string    `json:"study_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Audit trail
type AuditLog struct {
	ID       uuid.UUID              `json:"id"`
	StudyID  string                 `json:"study_id"`
	Actor    string                 `json:"actor"`
	Action   string                 `json:"action"`
	Entity   string                 `json:"entity"`
	EntityID string                 `json:"entity_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	At       time.Time              `json:"at"`
}
