package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
)

const (
	chunkSizeBytesConstant          = 32 * 1024
	downloadFilePermissionsConstant = 0o644
	downloadDirectoryPermissions    = 0o755
	fetchSkippedMessageConstant     = "Download skipped, file already present"
	fetchStartedMessageConstant     = "Downloading version"
	fetchCompletedMessageConstant   = "Download completed"
	versionLogFieldConstant         = "version"
	pathLogFieldConstant            = "path"
	urlLogFieldConstant             = "url"
	bytesLogFieldConstant           = "bytes"
	unknownContentLengthConstant    = -1
)

// ErrHTTPClientMissing indicates that no HTTP client was supplied.
var ErrHTTPClientMissing = errors.New("fetcher http client not configured")

// ErrProductNameMissing indicates that the file naming configuration is incomplete.
var ErrProductNameMissing = errors.New("fetcher product name not configured")

// HTTPClient executes download requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Configuration describes where and how versions are downloaded.
type Configuration struct {
	DownloadDirectory string
	ProductName       string
	FileExtension     string
	SkipIfExists      bool
}

// Result describes the outcome of a single fetch.
type Result struct {
	Path         string
	Skipped      bool
	BytesWritten int64
}

// Fetcher downloads version records to local files.
type Fetcher struct {
	logger        *zap.Logger
	httpClient    HTTPClient
	configuration Configuration
}

// NewFetcher validates the configuration and constructs a Fetcher.
func NewFetcher(logger *zap.Logger, httpClient HTTPClient, configuration Configuration) (*Fetcher, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientMissing
	}
	if len(strings.TrimSpace(configuration.ProductName)) == 0 {
		return nil, ErrProductNameMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(strings.TrimSpace(configuration.DownloadDirectory)) == 0 {
		configuration.DownloadDirectory = "."
	}
	return &Fetcher{logger: logger, httpClient: httpClient, configuration: configuration}, nil
}

// TargetPath reports the local path a record is downloaded to.
func (fetcher *Fetcher) TargetPath(record bucket.VersionRecord) string {
	fileName := record.AssetFileName(fetcher.configuration.ProductName, fetcher.configuration.FileExtension)
	return filepath.Join(fetcher.configuration.DownloadDirectory, fileName)
}

// Fetch downloads the record into the configured directory. Partial files are removed on failure.
func (fetcher *Fetcher) Fetch(executionContext context.Context, record bucket.VersionRecord) (Result, error) {
	targetPath := fetcher.TargetPath(record)

	if fetcher.configuration.SkipIfExists {
		fileInfo, statError := os.Stat(targetPath)
		if statError == nil && fileInfo.Mode().IsRegular() {
			fetcher.logger.Info(fetchSkippedMessageConstant, zap.String(versionLogFieldConstant, record.Version), zap.String(pathLogFieldConstant, targetPath))
			return Result{Path: targetPath, Skipped: true, BytesWritten: fileInfo.Size()}, nil
		}
	}

	if mkdirError := os.MkdirAll(fetcher.configuration.DownloadDirectory, downloadDirectoryPermissions); mkdirError != nil {
		return Result{}, DownloadError{Version: record.Version, Reason: FailureReasonFileError, Cause: mkdirError}
	}

	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, record.DownloadURL, nil)
	if requestError != nil {
		return Result{}, DownloadError{Version: record.Version, Reason: FailureReasonHTTPError, Cause: requestError}
	}

	fetcher.logger.Info(fetchStartedMessageConstant, zap.String(versionLogFieldConstant, record.Version), zap.String(urlLogFieldConstant, record.DownloadURL))

	response, responseError := fetcher.httpClient.Do(request)
	if responseError != nil {
		return Result{}, DownloadError{Version: record.Version, Reason: FailureReasonHTTPError, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return Result{}, DownloadError{Version: record.Version, Reason: FailureReasonHTTPError, StatusCode: response.StatusCode}
	}

	expectedBytes := response.ContentLength
	bytesWritten, writeError := writeStream(targetPath, response.Body, expectedBytes)
	if writeError == nil && expectedBytes > unknownContentLengthConstant && bytesWritten != expectedBytes {
		writeError = DownloadError{Version: record.Version, Reason: FailureReasonSizeMismatch, ExpectedBytes: expectedBytes, ReceivedBytes: bytesWritten}
	}
	if writeError != nil {
		_ = os.Remove(targetPath)
		return Result{}, classifyWriteError(record.Version, writeError, expectedBytes, bytesWritten)
	}

	fetcher.logger.Info(fetchCompletedMessageConstant, zap.String(versionLogFieldConstant, record.Version), zap.String(pathLogFieldConstant, targetPath), zap.Int64(bytesLogFieldConstant, bytesWritten))
	return Result{Path: targetPath, BytesWritten: bytesWritten}, nil
}

type fileWriteError struct {
	cause error
}

func (writeError fileWriteError) Error() string {
	return writeError.cause.Error()
}

func (writeError fileWriteError) Unwrap() error {
	return writeError.cause
}

func writeStream(targetPath string, body io.Reader, expectedBytes int64) (int64, error) {
	file, openError := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, downloadFilePermissionsConstant)
	if openError != nil {
		return 0, fileWriteError{cause: openError}
	}

	buffer := make([]byte, chunkSizeBytesConstant)
	var bytesWritten int64
	var streamError error
	for {
		readCount, readError := body.Read(buffer)
		if readCount > 0 {
			writtenCount, chunkWriteError := file.Write(buffer[:readCount])
			bytesWritten += int64(writtenCount)
			if chunkWriteError != nil {
				streamError = fileWriteError{cause: chunkWriteError}
				break
			}
		}
		if errors.Is(readError, io.EOF) {
			break
		}
		if readError != nil {
			streamError = readError
			break
		}
	}

	closeError := file.Close()
	if streamError != nil {
		return bytesWritten, streamError
	}
	if closeError != nil {
		return bytesWritten, fileWriteError{cause: closeError}
	}
	return bytesWritten, nil
}

func classifyWriteError(version string, writeError error, expectedBytes int64, bytesWritten int64) error {
	var downloadError DownloadError
	if errors.As(writeError, &downloadError) {
		return downloadError
	}

	var fileError fileWriteError
	if errors.As(writeError, &fileError) {
		return DownloadError{Version: version, Reason: FailureReasonFileError, Cause: fileError.cause}
	}

	if expectedBytes > unknownContentLengthConstant && errors.Is(writeError, io.ErrUnexpectedEOF) {
		return DownloadError{Version: version, Reason: FailureReasonSizeMismatch, ExpectedBytes: expectedBytes, ReceivedBytes: bytesWritten, Cause: writeError}
	}

	return DownloadError{Version: version, Reason: FailureReasonHTTPError, Cause: writeError}
}
