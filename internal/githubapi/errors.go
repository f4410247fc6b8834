package githubapi

import (
	"fmt"
	"net/http"
)

const (
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant    = "%s payload encoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	responseStatusErrorTemplateConstant     = "%s returned status %d"
	responseStatusWithBodyTemplateConstant  = "%s returned status %d: %s"
)

// OperationName describes a named GitHub API workflow supported by the client.
type OperationName string

// Supported operations.
const (
	OperationListReleases  OperationName = "ListReleases"
	OperationCreateRelease OperationName = "CreateRelease"
	OperationUploadAsset   OperationName = "UploadAsset"
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps transport issues for GitHub API operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseStatusError reports a non-2xx response.
type ResponseStatusError struct {
	Operation  OperationName
	StatusCode int
	Body       string
}

// Error describes the unexpected status.
func (statusError ResponseStatusError) Error() string {
	if len(statusError.Body) == 0 {
		return fmt.Sprintf(responseStatusErrorTemplateConstant, statusError.Operation, statusError.StatusCode)
	}
	return fmt.Sprintf(responseStatusWithBodyTemplateConstant, statusError.Operation, statusError.StatusCode, statusError.Body)
}

// Unauthorized reports whether GitHub rejected the credential.
func (statusError ResponseStatusError) Unauthorized() bool {
	return statusError.StatusCode == http.StatusUnauthorized
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates JSON encoding issues.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}
