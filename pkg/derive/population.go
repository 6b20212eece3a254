package derive

import (
	"strings"

	"github.com/clinforge-ai/platform/pkg/dataset"
)

// DerivePopulationFlags computes the named population flags for every
// subject and returns a new dataset; the input is never mutated. Flags for
// different subjects never depend on each other, so the per-subject loop is
// trivially partitionable if a pooled database ever needs it.
func DerivePopulationFlags(ds *dataset.Dataset, cfg Config) *dataset.Dataset {
	out := ds.Clone()
	efficacySet := cfg.efficacyParamSet()

	for _, id := range out.SubjectIDs() {
		subject, _ := out.Subject(id)
		setSubjectFlags(subject, out.MeasurementsFor(id), cfg, efficacySet)
	}
	return out
}

func setSubjectFlags(subject *dataset.SubjectRecord, measurements []dataset.MeasurementRecord, cfg Config, efficacySet map[string]struct{}) {
	safety := subject.FirstDoseDate.Known()
	itt := subject.RandomizationDate.Known() || subject.PlannedArm != ""

	perProtocol := itt && !subject.MajorDeviation &&
		subject.ComplianceRatio != nil && *subject.ComplianceRatio >= cfg.ComplianceThreshold

	efficacy := itt && hasPostBaselineValue(subject, measurements, efficacySet)

	subject.SetFlag(dataset.FlagSafety, safety)
	subject.SetFlag(dataset.FlagITT, itt)
	subject.SetFlag(dataset.FlagPerProtocol, perProtocol)
	subject.SetFlag(dataset.FlagEfficacy, efficacy)
}

// hasPostBaselineValue looks for at least one non-missing numeric value in
// the efficacy parameter set collected after the subject's reference date.
// Flags are derived before baseline records are assigned, so "post-baseline"
// here means after first dose, falling back to after randomization when the
// subject was never dosed. A subject with no measurements at all yields
// false.
func hasPostBaselineValue(subject *dataset.SubjectRecord, measurements []dataset.MeasurementRecord, efficacySet map[string]struct{}) bool {
	ref := subject.FirstDoseDate
	if !ref.Known() {
		ref = subject.RandomizationDate
	}
	if !ref.Known() {
		return false
	}

	for _, m := range measurements {
		if efficacySet != nil {
			if _, ok := efficacySet[strings.ToUpper(m.ParamCode)]; !ok {
				continue
			}
		}
		if _, numeric := m.Value.Float(); !numeric {
			continue
		}
		if m.CollectionDate.After(ref) {
			return true
		}
	}
	return false
}
