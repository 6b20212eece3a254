package engine

import (
	"strings"

	"github.com/clinforge-ai/platform/pkg/common/config"
	"github.com/clinforge-ai/platform/pkg/dataset"
	"github.com/clinforge-ai/platform/pkg/derive"
	"github.com/clinforge-ai/platform/pkg/terminology"
)

// ConfigFromPlatform assembles the derivation config from environment
// settings, falling back to the parameter catalog for the efficacy set
// when none is named. Validation happens in New; this only maps fields.
func ConfigFromPlatform(cfg *config.Config, catalog terminology.Catalog) derive.Config {
	out := derive.DefaultConfig()
	out.ComplianceThreshold = cfg.ComplianceThreshold
	out.BaselineRule = derive.BaselineRule(cfg.BaselineRule)
	out.Tolerance = cfg.NumericTolerance

	if len(cfg.EfficacyParams) > 0 {
		out.EfficacyParams = cfg.EfficacyParams
	} else {
		out.EfficacyParams = catalog.EfficacyParams()
	}

	if len(cfg.ShiftSeverityOrder) > 0 {
		order := make([]dataset.RangeIndicator, 0, len(cfg.ShiftSeverityOrder))
		for _, cat := range cfg.ShiftSeverityOrder {
			order = append(order, dataset.RangeIndicator(strings.ToUpper(strings.TrimSpace(cat))))
		}
		out.ShiftSeverityOrder = order
	}
	return out
}
