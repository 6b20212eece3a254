package derive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestConfigRejectsBadInputs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown rule", func(c *Config) { c.BaselineRule = "first-after-last-dose" }},
		{"threshold above one", func(c *Config) { c.ComplianceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.ComplianceThreshold = -0.1 }},
		{"negative tolerance", func(c *Config) { c.Tolerance = -1e-8 }},
		{"empty shift order", func(c *Config) { c.ShiftSeverityOrder = nil }},
		{"unknown shift category", func(c *Config) {
			c.ShiftSeverityOrder = []dataset.RangeIndicator{"EXTREME"}
		}},
		{"duplicate shift category", func(c *Config) {
			c.ShiftSeverityOrder = []dataset.RangeIndicator{dataset.RangeHigh, dataset.RangeHigh}
		}},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadStudyConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	content := `
compliance_threshold: 0.9
baseline_rule: last-before-randomization
efficacy_params:
  - SYSBP
  - DIABP
shift_severity_order:
  - low
  - high
  - normal
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := LoadStudyConfig(path, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ComplianceThreshold != 0.9 {
		t.Fatalf("expected threshold 0.9, got %g", cfg.ComplianceThreshold)
	}
	if cfg.BaselineRule != BaselineLastBeforeRandomization {
		t.Fatalf("expected overridden rule, got %q", cfg.BaselineRule)
	}
	if len(cfg.EfficacyParams) != 2 {
		t.Fatalf("expected 2 efficacy params, got %v", cfg.EfficacyParams)
	}
	if cfg.ShiftSeverityOrder[0] != dataset.RangeLow {
		t.Fatalf("expected LOW ranked worst, got %v", cfg.ShiftSeverityOrder)
	}
	// Untouched fields keep platform defaults.
	if cfg.Tolerance != 1e-8 {
		t.Fatalf("expected default tolerance, got %g", cfg.Tolerance)
	}
}

func TestLoadStudyConfigRejectsBadRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	if err := os.WriteFile(path, []byte("baseline_rule: whenever\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadStudyConfig(path, DefaultConfig()); err == nil {
		t.Fatal("expected configuration error for unknown rule")
	}
}
