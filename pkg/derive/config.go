package derive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clinforge-ai/platform/pkg/dataset"
	"gopkg.in/yaml.v3"
)

// BaselineRule names the baseline-selection strategy.
type BaselineRule string

const (
	// BaselineLastBeforeFirstDose picks the last non-missing value on or
	// before the subject's first dose date.
	BaselineLastBeforeFirstDose BaselineRule = "last-before-first-dose"
	// BaselineLastBeforeRandomization uses the randomization date as the
	// cutoff instead, for studies where dosing starts well after
	// randomization.
	BaselineLastBeforeRandomization BaselineRule = "last-before-randomization"
)

// Config carries every protocol-level knob for one derivation pass. It is
// immutable once validated and passed explicitly into each deriver and
// validator call, never held as ambient global state, so several studies
// can be processed concurrently without interference.
type Config struct {
	ComplianceThreshold float64
	BaselineRule        BaselineRule
	Tolerance           float64
	// EfficacyParams designates the efficacy parameter set. Empty means
	// every parameter counts toward the efficacy flag.
	EfficacyParams []string
	// ShiftSeverityOrder ranks reference-range categories worst-first for
	// the shift reporter.
	ShiftSeverityOrder []dataset.RangeIndicator
}

func DefaultConfig() Config {
	return Config{
		ComplianceThreshold: 0.8,
		BaselineRule:        BaselineLastBeforeFirstDose,
		Tolerance:           1e-8,
		ShiftSeverityOrder:  []dataset.RangeIndicator{dataset.RangeHigh, dataset.RangeLow, dataset.RangeNormal},
	}
}

// Validate rejects configuration errors up front, before any record is
// processed.
func (c Config) Validate() error {
	switch c.BaselineRule {
	case BaselineLastBeforeFirstDose, BaselineLastBeforeRandomization:
	default:
		return fmt.Errorf("unknown baseline rule %q", c.BaselineRule)
	}
	if c.ComplianceThreshold < 0 || c.ComplianceThreshold > 1 {
		return fmt.Errorf("compliance threshold %g outside [0,1]", c.ComplianceThreshold)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("numeric tolerance %g must be >= 0", c.Tolerance)
	}
	if len(c.ShiftSeverityOrder) == 0 {
		return fmt.Errorf("shift severity order must not be empty")
	}
	seen := make(map[dataset.RangeIndicator]struct{})
	for _, cat := range c.ShiftSeverityOrder {
		switch cat {
		case dataset.RangeHigh, dataset.RangeLow, dataset.RangeNormal:
		default:
			return fmt.Errorf("unknown reference-range category %q in shift severity order", cat)
		}
		if _, dup := seen[cat]; dup {
			return fmt.Errorf("duplicate category %q in shift severity order", cat)
		}
		seen[cat] = struct{}{}
	}
	return nil
}

func (c Config) efficacyParamSet() map[string]struct{} {
	if len(c.EfficacyParams) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.EfficacyParams))
	for _, p := range c.EfficacyParams {
		set[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}
	return set
}

// StudyConfig is the YAML shape of a per-study override file. Zero fields
// keep the platform defaults.
type StudyConfig struct {
	ComplianceThreshold *float64 `yaml:"compliance_threshold"`
	BaselineRule        string   `yaml:"baseline_rule"`
	Tolerance           *float64 `yaml:"tolerance"`
	EfficacyParams      []string `yaml:"efficacy_params"`
	ShiftSeverityOrder  []string `yaml:"shift_severity_order"`
}

// LoadStudyConfig overlays a study YAML file onto base and validates the
// result. A bad file or a bad resulting config is fatal at initialization
// time.
func LoadStudyConfig(path string, base Config) (Config, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("reading study config: %w", err)
	}
	var sc StudyConfig
	if err := yaml.Unmarshal(content, &sc); err != nil {
		return Config{}, fmt.Errorf("parsing study config: %w", err)
	}
	out := sc.Apply(base)
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (sc StudyConfig) Apply(base Config) Config {
	out := base
	if sc.ComplianceThreshold != nil {
		out.ComplianceThreshold = *sc.ComplianceThreshold
	}
	if sc.BaselineRule != "" {
		out.BaselineRule = BaselineRule(sc.BaselineRule)
	}
	if sc.Tolerance != nil {
		out.Tolerance = *sc.Tolerance
	}
	if len(sc.EfficacyParams) > 0 {
		out.EfficacyParams = append([]string(nil), sc.EfficacyParams...)
	}
	if len(sc.ShiftSeverityOrder) > 0 {
		order := make([]dataset.RangeIndicator, 0, len(sc.ShiftSeverityOrder))
		for _, cat := range sc.ShiftSeverityOrder {
			order = append(order, dataset.RangeIndicator(strings.ToUpper(strings.TrimSpace(cat))))
		}
		out.ShiftSeverityOrder = order
	}
	return out
}
