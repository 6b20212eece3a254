package ingestion

import (
	"errors"
	"testing"

	"github.com/clinforge-ai/platform/pkg/common/models"
)

func validRequest() models.SubmitRequest {
	return models.SubmitRequest{
		StudyID: "CF-301",
		Domain:  "LB",
		Format:  "csv",
		Raw:     "USUBJID,PARAMCD,AVAL\nS01,ALT,25\n",
	}
}

func TestValidateAcceptsWellFormedSubmission(t *testing.T) {
	v := NewValidator([]string{"DM", "EX", "LB", "VS", "DS"}, []string{"csv", "json"})
	if err := v.Validate(validRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNormalizesCase(t *testing.T) {
	v := NewValidator([]string{"LB"}, []string{"csv"})
	req := validRequest()
	req.Domain = "lb"
	req.Format = "CSV"
	if err := v.Validate(req); err != nil {
		t.Fatalf("case differences should not fail validation: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	v := NewValidator([]string{"DM", "LB"}, []string{"csv", "json"})

	cases := []struct {
		name   string
		mutate func(*models.SubmitRequest)
	}{
		{"missing study", func(r *models.SubmitRequest) { r.StudyID = "  " }},
		{"missing domain", func(r *models.SubmitRequest) { r.Domain = "" }},
		{"unknown domain", func(r *models.SubmitRequest) { r.Domain = "AE" }},
		{"missing format", func(r *models.SubmitRequest) { r.Format = "" }},
		{"unsupported format", func(r *models.SubmitRequest) { r.Format = "xpt" }},
		{"empty payload", func(r *models.SubmitRequest) { r.Raw = ""; r.Records = nil }},
	}

	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		err := v.Validate(req)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !IsValidationError(err) {
			t.Fatalf("%s: expected a validation error, got %v", tc.name, err)
		}
	}
}

func TestValidateRecordsPayloadSufficient(t *testing.T) {
	v := NewValidator([]string{"LB"}, []string{"json"})
	req := models.SubmitRequest{
		StudyID: "CF-301",
		Domain:  "LB",
		Format:  "json",
		Records: []map[string]string{{"USUBJID": "S01", "PARAMCD": "ALT", "AVAL": "25"}},
	}
	if err := v.Validate(req); err != nil {
		t.Fatalf("records payload should satisfy validation: %v", err)
	}
}

func TestValidationErrorUnwraps(t *testing.T) {
	v := NewValidator([]string{"LB"}, []string{"csv"})
	req := validRequest()
	req.Domain = "AE"

	err := v.Validate(req)
	if !errors.Is(err, errInvalidDomain) {
		t.Fatalf("expected errInvalidDomain in chain, got %v", err)
	}
}

func TestNilValidator(t *testing.T) {
	var v *Validator
	if err := v.Validate(validRequest()); !IsValidationError(err) {
		t.Fatalf("nil validator must fail closed, got %v", err)
	}
}
