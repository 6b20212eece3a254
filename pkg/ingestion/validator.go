package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clinforge-ai/platform/pkg/common/models"
)

var (
	errInvalidDomain = errors.New("invalid domain")
	errInvalidFormat = errors.New("invalid format")
	errMissingStudy  = errors.New("missing study identifier")
	errEmptyPayload  = errors.New("missing data payload")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator gatekeeps submission envelopes: known SDTM domain, supported
// format, non-empty payload. Record-level problems are not its concern;
// those surface later as validation issues.
type Validator struct {
	allowedDomains map[string]struct{}
	allowedFormats map[string]struct{}
}

func NewValidator(domains, formats []string) *Validator {
	vd := make(map[string]struct{})
	for _, d := range domains {
		if trimmed := strings.TrimSpace(strings.ToUpper(d)); trimmed != "" {
			vd[trimmed] = struct{}{}
		}
	}

	vf := make(map[string]struct{})
	for _, f := range formats {
		if trimmed := strings.TrimSpace(strings.ToLower(f)); trimmed != "" {
			vf[trimmed] = struct{}{}
		}
	}

	return &Validator{allowedDomains: vd, allowedFormats: vf}
}

func (v *Validator) Validate(req models.SubmitRequest) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}

	if strings.TrimSpace(req.StudyID) == "" {
		return ValidationError{reason: errMissingStudy}
	}

	domain := strings.TrimSpace(strings.ToUpper(req.Domain))
	if domain == "" {
		return ValidationError{reason: fmt.Errorf("domain required: %w", errInvalidDomain)}
	}
	if len(v.allowedDomains) > 0 {
		if _, ok := v.allowedDomains[domain]; !ok {
			return ValidationError{reason: fmt.Errorf("domain '%s' not allowed: %w", domain, errInvalidDomain)}
		}
	}

	format := strings.TrimSpace(strings.ToLower(req.Format))
	if format == "" {
		return ValidationError{reason: fmt.Errorf("format required: %w", errInvalidFormat)}
	}
	if len(v.allowedFormats) > 0 {
		if _, ok := v.allowedFormats[format]; !ok {
			return ValidationError{reason: fmt.Errorf("format '%s' not supported: %w", format, errInvalidFormat)}
		}
	}

	if len(req.Records) == 0 && strings.TrimSpace(req.Raw) == "" {
		return ValidationError{reason: errEmptyPayload}
	}

	return nil
}
