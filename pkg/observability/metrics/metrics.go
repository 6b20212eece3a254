package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	submissionsAccepted atomic.Int64
	submissionsFailed   atomic.Int64
	recordsLoaded       atomic.Int64

	runsStarted   atomic.Int64
	runsCompleted atomic.Int64
	runsFailed    atomic.Int64

	issuesCritical atomic.Int64
	issuesMajor    atomic.Int64
	issuesMinor    atomic.Int64
)

func Init() {}

func SubmissionAccepted(records int) {
	submissionsAccepted.Add(1)
	recordsLoaded.Add(int64(records))
}

func SubmissionFailed() {
	submissionsFailed.Add(1)
}

func RunStarted() {
	runsStarted.Add(1)
}

func RunCompleted(critical, major, minor int) {
	runsCompleted.Add(1)
	issuesCritical.Add(int64(critical))
	issuesMajor.Add(int64(major))
	issuesMinor.Add(int64(minor))
}

func RunFailed() {
	runsFailed.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP clinforge_submissions_accepted_total Number of SDTM submissions accepted.\n")
	fmt.Fprintf(w, "# TYPE clinforge_submissions_accepted_total counter\n")
	fmt.Fprintf(w, "clinforge_submissions_accepted_total %d\n", submissionsAccepted.Load())

	fmt.Fprintf(w, "# HELP clinforge_submissions_failed_total Number of SDTM submissions rejected or failed.\n")
	fmt.Fprintf(w, "# TYPE clinforge_submissions_failed_total counter\n")
	fmt.Fprintf(w, "clinforge_submissions_failed_total %d\n", submissionsFailed.Load())

	fmt.Fprintf(w, "# HELP clinforge_records_loaded_total Number of raw records mapped into the dataset model.\n")
	fmt.Fprintf(w, "# TYPE clinforge_records_loaded_total counter\n")
	fmt.Fprintf(w, "clinforge_records_loaded_total %d\n", recordsLoaded.Load())

	fmt.Fprintf(w, "# HELP clinforge_derivation_runs_started_total Number of derivation runs started.\n")
	fmt.Fprintf(w, "# TYPE clinforge_derivation_runs_started_total counter\n")
	fmt.Fprintf(w, "clinforge_derivation_runs_started_total %d\n", runsStarted.Load())

	fmt.Fprintf(w, "# HELP clinforge_derivation_runs_completed_total Number of derivation runs completed.\n")
	fmt.Fprintf(w, "# TYPE clinforge_derivation_runs_completed_total counter\n")
	fmt.Fprintf(w, "clinforge_derivation_runs_completed_total %d\n", runsCompleted.Load())

	fmt.Fprintf(w, "# HELP clinforge_derivation_runs_failed_total Number of derivation runs failed.\n")
	fmt.Fprintf(w, "# TYPE clinforge_derivation_runs_failed_total counter\n")
	fmt.Fprintf(w, "clinforge_derivation_runs_failed_total %d\n", runsFailed.Load())

	fmt.Fprintf(w, "# HELP clinforge_validation_issues_critical_total Critical validation issues emitted.\n")
	fmt.Fprintf(w, "# TYPE clinforge_validation_issues_critical_total counter\n")
	fmt.Fprintf(w, "clinforge_validation_issues_critical_total %d\n", issuesCritical.Load())

	fmt.Fprintf(w, "# HELP clinforge_validation_issues_major_total Major validation issues emitted.\n")
	fmt.Fprintf(w, "# TYPE clinforge_validation_issues_major_total counter\n")
	fmt.Fprintf(w, "clinforge_validation_issues_major_total %d\n", issuesMajor.Load())

	fmt.Fprintf(w, "# HELP clinforge_validation_issues_minor_total Minor validation issues emitted.\n")
	fmt.Fprintf(w, "# TYPE clinforge_validation_issues_minor_total counter\n")
	fmt.Fprintf(w, "clinforge_validation_issues_minor_total %d\n", issuesMinor.Load())
}
