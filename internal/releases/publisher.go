package releases

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
	"github.com/temirov/popper/internal/githubapi"
	"github.com/temirov/popper/internal/versions"
)

const (
	releaseNameTemplateConstant         = "%s %s"
	releaseBodyTemplateConstant         = "Версия: %s\nПоследнее изменение: %s\nРазмер: %s MB"
	defaultContentTypeConstant          = "application/vnd.android.package-archive"
	assetNotRegularFileTemplateConstant = "asset %s is not a regular file"
	releaseCreatedMessageConstant       = "Release created"
	assetUploadedMessageConstant        = "Asset uploaded"
	repositoryLogFieldConstant          = "repository"
	tagLogFieldConstant                 = "tag"
	releaseURLLogFieldConstant          = "release_url"
	assetLogFieldConstant               = "asset"
	bytesLogFieldConstant               = "bytes"
)

var (
	// ErrReleaseClientMissing indicates the publisher was constructed without a release client.
	ErrReleaseClientMissing = errors.New("release client not configured")

	// ErrRepositoryMissing indicates the target repository is not configured.
	ErrRepositoryMissing = errors.New("release repository not configured")

	// ErrProductNameMissing indicates the product name used for titles and asset names is not configured.
	ErrProductNameMissing = errors.New("release product name not configured")
)

// ReleaseClient is the subset of the GitHub API client used for publishing.
type ReleaseClient interface {
	CreateRelease(executionContext context.Context, repository string, releaseRequest githubapi.ReleaseRequest) (githubapi.Release, error)
	UploadAsset(executionContext context.Context, upload githubapi.AssetUpload) (githubapi.Asset, error)
}

// PublisherDependencies enumerates collaborators required by the publisher.
type PublisherDependencies struct {
	Client ReleaseClient
	Logger *zap.Logger
}

// Configuration controls naming of the published releases.
type Configuration struct {
	Repository    string
	ProductName   string
	TagPrefix     string
	FileExtension string
	ContentType   string
}

// Result summarizes a published version.
type Result struct {
	Release   githubapi.Release
	Asset     githubapi.Asset
	AssetName string
}

// Publisher creates releases and attaches assets.
type Publisher struct {
	client        ReleaseClient
	logger        *zap.Logger
	configuration Configuration
}

// NewPublisher validates dependencies and constructs a Publisher.
func NewPublisher(dependencies PublisherDependencies, configuration Configuration) (*Publisher, error) {
	if dependencies.Client == nil {
		return nil, ErrReleaseClientMissing
	}
	configuration.Repository = strings.TrimSpace(configuration.Repository)
	if len(configuration.Repository) == 0 {
		return nil, ErrRepositoryMissing
	}
	configuration.ProductName = strings.TrimSpace(configuration.ProductName)
	if len(configuration.ProductName) == 0 {
		return nil, ErrProductNameMissing
	}
	configuration.TagPrefix = strings.TrimSpace(configuration.TagPrefix)
	if len(strings.TrimSpace(configuration.ContentType)) == 0 {
		configuration.ContentType = defaultContentTypeConstant
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{client: dependencies.Client, logger: logger, configuration: configuration}, nil
}

// ComposeRequest builds the release payload for the record.
func (publisher *Publisher) ComposeRequest(record bucket.VersionRecord) githubapi.ReleaseRequest {
	return githubapi.ReleaseRequest{
		TagName:    versions.TagName(record.Version, publisher.configuration.TagPrefix),
		Name:       fmt.Sprintf(releaseNameTemplateConstant, publisher.configuration.ProductName, record.Version),
		Body:       fmt.Sprintf(releaseBodyTemplateConstant, record.Version, record.FormattedLastModified(), record.FormattedSizeMegabytes()),
		Draft:      false,
		Prerelease: false,
	}
}

// AssetName reports the attachment name for the record.
func (publisher *Publisher) AssetName(record bucket.VersionRecord) string {
	return record.AssetFileName(publisher.configuration.ProductName, publisher.configuration.FileExtension)
}

// Publish creates the release for the record and uploads the file at localPath as its asset.
// A failed upload returns UploadError carrying the created release, which is not rolled back.
func (publisher *Publisher) Publish(executionContext context.Context, record bucket.VersionRecord, localPath string) (Result, error) {
	releaseRequest := publisher.ComposeRequest(record)
	assetName := publisher.AssetName(record)

	assetFile, openError := os.Open(localPath)
	if openError != nil {
		return Result{}, CreateError{TagName: releaseRequest.TagName, Cause: openError}
	}
	defer assetFile.Close()

	assetInfo, statError := assetFile.Stat()
	if statError != nil {
		return Result{}, CreateError{TagName: releaseRequest.TagName, Cause: statError}
	}
	if !assetInfo.Mode().IsRegular() {
		return Result{}, CreateError{TagName: releaseRequest.TagName, Cause: fmt.Errorf(assetNotRegularFileTemplateConstant, localPath)}
	}

	release, createError := publisher.client.CreateRelease(executionContext, publisher.configuration.Repository, releaseRequest)
	if createError != nil {
		return Result{}, CreateError{TagName: releaseRequest.TagName, Cause: createError}
	}
	publisher.logger.Info(releaseCreatedMessageConstant,
		zap.String(repositoryLogFieldConstant, publisher.configuration.Repository),
		zap.String(tagLogFieldConstant, release.TagName),
		zap.String(releaseURLLogFieldConstant, release.HTMLURL),
	)

	asset, uploadError := publisher.client.UploadAsset(executionContext, githubapi.AssetUpload{
		UploadURL:   release.UploadURL,
		Name:        assetName,
		ContentType: publisher.configuration.ContentType,
		Content:     assetFile,
		Size:        assetInfo.Size(),
	})
	if uploadError != nil {
		return Result{Release: release, AssetName: assetName}, UploadError{Release: release, AssetName: assetName, Cause: uploadError}
	}
	publisher.logger.Info(assetUploadedMessageConstant,
		zap.String(tagLogFieldConstant, release.TagName),
		zap.String(assetLogFieldConstant, assetName),
		zap.Int64(bytesLogFieldConstant, assetInfo.Size()),
	)

	return Result{Release: release, Asset: asset, AssetName: assetName}, nil
}
