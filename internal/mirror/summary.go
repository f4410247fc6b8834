package mirror

import "errors"

// OutcomeStatus describes what happened to one pending version.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeStatusPublished      OutcomeStatus = "published"
	OutcomeStatusPlanned        OutcomeStatus = "planned"
	OutcomeStatusDownloadFailed OutcomeStatus = "download_failed"
	OutcomeStatusPublishFailed  OutcomeStatus = "publish_failed"
	OutcomeStatusUploadFailed   OutcomeStatus = "upload_failed"
)

// VersionOutcome records the processing result of one version.
type VersionOutcome struct {
	Version         string        `yaml:"version"`
	Status          OutcomeStatus `yaml:"status"`
	LocalPath       string        `yaml:"local_path,omitempty"`
	ReusedLocalFile bool          `yaml:"reused_local_file,omitempty"`
	ReleaseTag      string        `yaml:"release_tag,omitempty"`
	ReleaseURL      string        `yaml:"release_url,omitempty"`
	AssetName       string        `yaml:"asset_name,omitempty"`
	ErrorMessage    string        `yaml:"error,omitempty"`
	Error           error         `yaml:"-"`
}

// Failed reports whether the version ended in an error.
func (outcome VersionOutcome) Failed() bool {
	return outcome.Error != nil
}

// Summary aggregates the results of a run.
type Summary struct {
	RunID      string           `yaml:"run_id"`
	Repository string           `yaml:"repository"`
	DryRun     bool             `yaml:"dry_run"`
	Discovered int              `yaml:"discovered"`
	Skipped    []string         `yaml:"skipped"`
	Outcomes   []VersionOutcome `yaml:"outcomes"`
}

// CountStatus reports how many outcomes have the status.
func (summary Summary) CountStatus(status OutcomeStatus) int {
	count := 0
	for _, outcome := range summary.Outcomes {
		if outcome.Status == status {
			count++
		}
	}
	return count
}

// Failures lists the outcomes that ended in an error.
func (summary Summary) Failures() []VersionOutcome {
	failures := make([]VersionOutcome, 0)
	for _, outcome := range summary.Outcomes {
		if outcome.Failed() {
			failures = append(failures, outcome)
		}
	}
	return failures
}

// Err joins every per-version failure, or returns nil when all versions succeeded.
func (summary Summary) Err() error {
	failureErrors := make([]error, 0)
	for _, outcome := range summary.Failures() {
		failureErrors = append(failureErrors, outcome.Error)
	}
	return errors.Join(failureErrors...)
}
