package mirror

import (
	"errors"
	"fmt"
)

const (
	listingErrorTemplateConstant  = "%s listing failed: %v"
	authErrorTemplateConstant     = "github authentication failed: %v"
	downloadErrorTemplateConstant = "version %s download failed: %v"
	publishErrorTemplateConstant  = "version %s release %s not created: %v"
	uploadErrorTemplateConstant   = "version %s release %s created without asset: %v"
)

// ErrCredentialMissing reports a run attempted without a GitHub token.
var ErrCredentialMissing = errors.New("github token is empty")

// ListingSubject identifies which listing failed.
type ListingSubject string

// Listing subjects.
const (
	ListingSubjectBucket   ListingSubject = "bucket"
	ListingSubjectReleases ListingSubject = "release"
)

// ListingError is fatal: the bucket or the existing releases could not be listed.
type ListingError struct {
	Subject ListingSubject
	Cause   error
}

func (listingError ListingError) Error() string {
	return fmt.Sprintf(listingErrorTemplateConstant, listingError.Subject, listingError.Cause)
}

func (listingError ListingError) Unwrap() error {
	return listingError.Cause
}

// AuthError is fatal: the token is missing or GitHub rejected it.
type AuthError struct {
	Cause error
}

func (authError AuthError) Error() string {
	return fmt.Sprintf(authErrorTemplateConstant, authError.Cause)
}

func (authError AuthError) Unwrap() error {
	return authError.Cause
}

// DownloadError is recoverable: one version could not be downloaded.
type DownloadError struct {
	Version string
	Cause   error
}

func (downloadError DownloadError) Error() string {
	return fmt.Sprintf(downloadErrorTemplateConstant, downloadError.Version, downloadError.Cause)
}

func (downloadError DownloadError) Unwrap() error {
	return downloadError.Cause
}

// PublishError is recoverable: the release of one version could not be created.
type PublishError struct {
	Version    string
	ReleaseTag string
	Cause      error
}

func (publishError PublishError) Error() string {
	return fmt.Sprintf(publishErrorTemplateConstant, publishError.Version, publishError.ReleaseTag, publishError.Cause)
}

func (publishError PublishError) Unwrap() error {
	return publishError.Cause
}

// UploadError is recoverable: the release exists but its asset was not attached.
type UploadError struct {
	Version    string
	ReleaseTag string
	ReleaseURL string
	AssetName  string
	Cause      error
}

func (uploadError UploadError) Error() string {
	return fmt.Sprintf(uploadErrorTemplateConstant, uploadError.Version, uploadError.ReleaseTag, uploadError.Cause)
}

func (uploadError UploadError) Unwrap() error {
	return uploadError.Cause
}

// IsFatal reports whether the error aborts the whole run.
func IsFatal(err error) bool {
	var listingError ListingError
	if errors.As(err, &listingError) {
		return true
	}
	var authError AuthError
	return errors.As(err, &authError)
}
