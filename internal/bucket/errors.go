package bucket

import "fmt"

const (
	listingErrorTemplateConstant             = "bucket listing %s failed: %v"
	listingStatusErrorTemplateConstant       = "bucket listing %s returned status %d"
	listingErrorWithoutCauseTemplateConstant = "bucket listing %s failed"
)

// ListingError reports an unreachable or malformed bucket listing.
type ListingError struct {
	BucketURL  string
	StatusCode int
	Cause      error
}

// Error describes the listing failure.
func (listingError ListingError) Error() string {
	switch {
	case listingError.Cause != nil:
		return fmt.Sprintf(listingErrorTemplateConstant, listingError.BucketURL, listingError.Cause)
	case listingError.StatusCode != 0:
		return fmt.Sprintf(listingStatusErrorTemplateConstant, listingError.BucketURL, listingError.StatusCode)
	default:
		return fmt.Sprintf(listingErrorWithoutCauseTemplateConstant, listingError.BucketURL)
	}
}

// Unwrap exposes the underlying cause.
func (listingError ListingError) Unwrap() error {
	return listingError.Cause
}
