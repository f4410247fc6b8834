package fetcher

import "fmt"

const (
	downloadErrorTemplateConstant         = "download of %s failed (%s): %v"
	downloadStatusErrorTemplateConstant   = "download of %s failed (%s): status %d"
	downloadMismatchErrorTemplateConstant = "download of %s failed (%s): received %d of %d bytes"
	downloadGenericErrorTemplateConstant  = "download of %s failed (%s)"
)

// FailureReason classifies download failures.
type FailureReason string

// Supported failure reasons.
const (
	FailureReasonHTTPError    FailureReason = "http_error"
	FailureReasonSizeMismatch FailureReason = "size_mismatch"
	FailureReasonFileError    FailureReason = "file_error"
)

// DownloadError reports a failed or truncated download of one version.
type DownloadError struct {
	Version       string
	Reason        FailureReason
	StatusCode    int
	ExpectedBytes int64
	ReceivedBytes int64
	Cause         error
}

// Error describes the download failure.
func (downloadError DownloadError) Error() string {
	switch {
	case downloadError.Reason == FailureReasonSizeMismatch:
		return fmt.Sprintf(downloadMismatchErrorTemplateConstant, downloadError.Version, downloadError.Reason, downloadError.ReceivedBytes, downloadError.ExpectedBytes)
	case downloadError.Cause != nil:
		return fmt.Sprintf(downloadErrorTemplateConstant, downloadError.Version, downloadError.Reason, downloadError.Cause)
	case downloadError.StatusCode != 0:
		return fmt.Sprintf(downloadStatusErrorTemplateConstant, downloadError.Version, downloadError.Reason, downloadError.StatusCode)
	default:
		return fmt.Sprintf(downloadGenericErrorTemplateConstant, downloadError.Version, downloadError.Reason)
	}
}

// Unwrap exposes the underlying cause.
func (downloadError DownloadError) Unwrap() error {
	return downloadError.Cause
}
