package releases

import (
	"fmt"

	"github.com/temirov/popper/internal/githubapi"
)

const (
	createErrorTemplateConstant = "release %s creation failed: %v"
	uploadErrorTemplateConstant = "asset %s upload to release %s failed: %v"
)

// CreateError reports that no release was created for the tag.
type CreateError struct {
	TagName string
	Cause   error
}

// Error describes the creation failure.
func (createError CreateError) Error() string {
	return fmt.Sprintf(createErrorTemplateConstant, createError.TagName, createError.Cause)
}

// Unwrap exposes the underlying cause.
func (createError CreateError) Unwrap() error {
	return createError.Cause
}

// UploadError reports a release that was created but has no asset attached.
type UploadError struct {
	Release   githubapi.Release
	AssetName string
	Cause     error
}

// Error describes the upload failure.
func (uploadError UploadError) Error() string {
	return fmt.Sprintf(uploadErrorTemplateConstant, uploadError.AssetName, uploadError.Release.TagName, uploadError.Cause)
}

// Unwrap exposes the underlying cause.
func (uploadError UploadError) Unwrap() error {
	return uploadError.Cause
}
