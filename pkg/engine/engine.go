package engine

import (
	"fmt"

	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/derive"
	"github.com/clinforge-ai/platform/pkg/shift"
	"github.com/clinforge-ai/platform/pkg/validate"
)

// Engine runs one full derivation and validation pass: population flags,
// baseline/change assignment, cross-dataset validation, shift tables. It
// holds only immutable configuration, so a single Engine can serve
// concurrent studies.
type Engine struct {
	cfg       derive.Config
	validator *validate.Validator
	reporter  *shift.Reporter
}

// New validates the configuration up front; a bad rule name or threshold
// fails here, never inside the per-record loops.
func New(cfg derive.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("derivation config: %w", err)
	}
	validator, err := validate.NewValidator(cfg.Tolerance)
	if err != nil {
		return nil, err
	}
	reporter, err := shift.NewReporter(cfg.ShiftSeverityOrder)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, validator: validator, reporter: reporter}, nil
}

type RunResult struct {
	Derived *dataset.Dataset
	Report  *validate.Report
	Shift   []shift.Row
}

// Run executes the pipeline over an immutable input dataset. Structural
// issues collected at load time ride along into the final report. The
// input is never mutated; each deriver returns a fresh dataset.
func (e *Engine) Run(ds *dataset.Dataset, loadIssues ...validate.Issue) *RunResult {
	flagged := derive.DerivePopulationFlags(ds, e.cfg)
	derived := derive.DeriveBaselineChanges(flagged, e.cfg)
	report := e.validator.Validate(derived, loadIssues...)
	rows := e.reporter.Build(derived)

	return &RunResult{Derived: derived, Report: report, Shift: rows}
}

func (e *Engine) Config() derive.Config {
	return e.cfg
}
