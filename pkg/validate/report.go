package validate

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteText renders the report as a flat listing, one finding per line.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "validation report for study %s (%d findings)\n", r.StudyID, len(r.Issues)); err != nil {
		return err
	}
	for _, issue := range r.Issues {
		subject := issue.SubjectID
		if subject == "" {
			subject = "-"
		}
		variable := issue.Variable
		if variable == "" {
			variable = "-"
		}
		if _, err := fmt.Fprintf(w, "%-10s %-26s %-12s %-14s %s\n",
			issue.Severity, issue.Category, subject, variable, issue.Message); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV renders the report with a header row, for spreadsheet review.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"category", "severity", "subject_id", "variable", "message"}); err != nil {
		return err
	}
	for _, issue := range r.Issues {
		row := []string{string(issue.Category), string(issue.Severity), issue.SubjectID, issue.Variable, issue.Message}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
