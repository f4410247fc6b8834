package bucket

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/popper/internal/versions"
)

const (
	keyPathSeparatorConstant                = "/"
	baseURLMissingErrorMessageConstant      = "bucket base URL must be provided"
	baseURLNotAbsoluteErrorTemplateConstant = "bucket base URL %q must be absolute"
	baseURLParseErrorTemplateConstant       = "unable to parse bucket base URL: %w"
	lastModifiedParseErrorTemplateConstant  = "object %s has invalid LastModified %q: %w"
	negativeSizeErrorTemplateConstant       = "object %s has negative size %d"
	skippedObjectLogMessageConstant         = "skipping bucket object"
	skippedObjectKeyFieldConstant           = "key"
	skippedObjectReasonFieldConstant        = "reason"
	skipReasonDecorationConstant            = "key does not match package naming"
	skipReasonVersionConstant               = "key does not carry a numeric version"
)

// ErrBaseURLMissing indicates an empty bucket base URL.
var ErrBaseURLMissing = errors.New(baseURLMissingErrorMessageConstant)

// NamingConfiguration describes how object keys map to package versions.
type NamingConfiguration struct {
	KeyPrefix string
	KeySuffix string
}

// ParseBaseURL validates an absolute bucket base URL and ensures it ends with a slash.
func ParseBaseURL(baseURLValue string) (*url.URL, error) {
	trimmedValue := strings.TrimSpace(baseURLValue)
	if len(trimmedValue) == 0 {
		return nil, ErrBaseURLMissing
	}

	parsedURL, parseError := url.Parse(trimmedValue)
	if parseError != nil {
		return nil, fmt.Errorf(baseURLParseErrorTemplateConstant, parseError)
	}
	if !parsedURL.IsAbs() || len(parsedURL.Host) == 0 {
		return nil, fmt.Errorf(baseURLNotAbsoluteErrorTemplateConstant, trimmedValue)
	}
	if !strings.HasSuffix(parsedURL.Path, keyPathSeparatorConstant) {
		parsedURL.Path += keyPathSeparatorConstant
	}
	parsedURL.RawPath = ""
	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""

	return parsedURL, nil
}

// ExtractVersion strips the directory part and the configured decorations from an object key.
func (naming NamingConfiguration) ExtractVersion(objectKey string) (string, bool) {
	baseName := objectKey
	if separatorIndex := strings.LastIndex(objectKey, keyPathSeparatorConstant); separatorIndex >= 0 {
		baseName = objectKey[separatorIndex+1:]
	}

	if !strings.HasPrefix(baseName, naming.KeyPrefix) || !strings.HasSuffix(baseName, naming.KeySuffix) {
		return "", false
	}
	if len(baseName) < len(naming.KeyPrefix)+len(naming.KeySuffix) {
		return "", false
	}

	version := baseName[len(naming.KeyPrefix) : len(baseName)-len(naming.KeySuffix)]
	if len(version) == 0 {
		return "", false
	}
	return version, true
}

type recordNormalizer struct {
	baseURL *url.URL
	naming  NamingConfiguration
	logger  *zap.Logger
}

func newRecordNormalizer(baseURL *url.URL, naming NamingConfiguration, logger *zap.Logger) recordNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return recordNormalizer{baseURL: baseURL, naming: naming, logger: logger}
}

// normalize converts one listed object into a record. The boolean result is false
// for objects that are not packages; the error is reserved for malformed metadata.
func (normalizer recordNormalizer) normalize(objectKey string, lastModified time.Time, sizeBytes int64) (VersionRecord, bool, error) {
	versionText, matchesNaming := normalizer.naming.ExtractVersion(objectKey)
	if !matchesNaming {
		normalizer.logSkipped(objectKey, skipReasonDecorationConstant)
		return VersionRecord{}, false, nil
	}

	parsedVersion, parseError := versions.Parse(versionText)
	if parseError != nil {
		normalizer.logSkipped(objectKey, skipReasonVersionConstant)
		return VersionRecord{}, false, nil
	}

	if sizeBytes < 0 {
		return VersionRecord{}, false, fmt.Errorf(negativeSizeErrorTemplateConstant, objectKey, sizeBytes)
	}

	record := VersionRecord{
		Version:      parsedVersion.String(),
		Components:   parsedVersion.Components(),
		Key:          objectKey,
		LastModified: lastModified,
		SizeBytes:    sizeBytes,
		DownloadURL:  normalizer.baseURL.JoinPath(objectKey).String(),
	}
	return record, true, nil
}

func (normalizer recordNormalizer) logSkipped(objectKey string, reason string) {
	normalizer.logger.Warn(
		skippedObjectLogMessageConstant,
		zap.String(skippedObjectKeyFieldConstant, objectKey),
		zap.String(skippedObjectReasonFieldConstant, reason),
	)
}

func parseLastModified(objectKey string, lastModifiedValue string) (time.Time, error) {
	parsedTime, parseError := time.Parse(time.RFC3339, strings.TrimSpace(lastModifiedValue))
	if parseError != nil {
		return time.Time{}, fmt.Errorf(lastModifiedParseErrorTemplateConstant, objectKey, lastModifiedValue, parseError)
	}
	return parsedTime, nil
}
