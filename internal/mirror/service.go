package mirror

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
	"github.com/temirov/popper/internal/fetcher"
	"github.com/temirov/popper/internal/githubapi"
	"github.com/temirov/popper/internal/releases"
	"github.com/temirov/popper/internal/utils"
	"github.com/temirov/popper/internal/versions"
)

const (
	runStartedMessageConstant         = "Mirror run started"
	runCompletedMessageConstant       = "Mirror run completed"
	versionsDiscoveredMessageConstant = "Bucket versions discovered"
	releasesListedMessageConstant     = "Existing releases listed"
	versionSkippedMessageConstant     = "Version already published"
	versionsReconciledMessageConstant = "Versions reconciled"
	versionPlannedMessageConstant     = "Version planned for publication"
	versionPublishedMessageConstant   = "Version published"
	versionFailedMessageConstant      = "Version processing failed"
	orphanedReleaseMessageConstant    = "Release created without asset"
	runIdentifierLogFieldConstant     = "run_id"
	repositoryLogFieldConstant        = "repository"
	versionLogFieldConstant           = "version"
	tagLogFieldConstant               = "tag"
	releaseURLLogFieldConstant        = "release_url"
	pathLogFieldConstant              = "path"
	statusLogFieldConstant            = "status"
	countLogFieldConstant             = "count"
	pendingLogFieldConstant           = "pending"
	skippedLogFieldConstant           = "skipped"
	publishedLogFieldConstant         = "published"
	failedLogFieldConstant            = "failed"
	dryRunLogFieldConstant            = "dry_run"
)

var (
	// ErrListerMissing indicates the service was constructed without a bucket lister.
	ErrListerMissing = errors.New("mirror bucket lister not configured")

	// ErrReleaseCatalogMissing indicates the service was constructed without a release catalog.
	ErrReleaseCatalogMissing = errors.New("mirror release catalog not configured")

	// ErrFetcherMissing indicates the service was constructed without an asset fetcher.
	ErrFetcherMissing = errors.New("mirror asset fetcher not configured")

	// ErrPublisherMissing indicates the service was constructed without a release publisher.
	ErrPublisherMissing = errors.New("mirror release publisher not configured")
)

// VersionLister enumerates the versions stored in the bucket.
type VersionLister interface {
	List(executionContext context.Context) ([]bucket.VersionRecord, error)
}

// ReleaseCatalog enumerates the releases already published.
type ReleaseCatalog interface {
	ListReleases(executionContext context.Context, repository string) ([]githubapi.Release, error)
}

// AssetFetcher downloads a version to a local file.
type AssetFetcher interface {
	Fetch(executionContext context.Context, record bucket.VersionRecord) (fetcher.Result, error)
}

// ReleasePublisher creates a release and attaches the downloaded file.
type ReleasePublisher interface {
	Publish(executionContext context.Context, record bucket.VersionRecord, localPath string) (releases.Result, error)
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Logger          *zap.Logger
	Lister          VersionLister
	Releases        ReleaseCatalog
	Fetcher         AssetFetcher
	Publisher       ReleasePublisher
	ContextAccessor utils.CommandContextAccessor
}

// RunOptions controls a single mirror run.
type RunOptions struct {
	Repository string
	TagPrefix  string
	Token      string
	DryRun     bool
}

// Service reconciles the bucket with the releases of a repository.
type Service struct {
	logger          *zap.Logger
	lister          VersionLister
	releases        ReleaseCatalog
	fetcher         AssetFetcher
	publisher       ReleasePublisher
	contextAccessor utils.CommandContextAccessor
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Lister == nil {
		return nil, ErrListerMissing
	}
	if dependencies.Releases == nil {
		return nil, ErrReleaseCatalogMissing
	}
	if dependencies.Fetcher == nil {
		return nil, ErrFetcherMissing
	}
	if dependencies.Publisher == nil {
		return nil, ErrPublisherMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		logger:          logger,
		lister:          dependencies.Lister,
		releases:        dependencies.Releases,
		fetcher:         dependencies.Fetcher,
		publisher:       dependencies.Publisher,
		contextAccessor: dependencies.ContextAccessor,
	}, nil
}

// Run lists the bucket, skips versions that are already released and processes the rest sequentially.
// The returned error is fatal (ListingError, AuthError or context cancellation); per-version
// failures are carried by the Summary.
func (service *Service) Run(executionContext context.Context, options RunOptions) (Summary, error) {
	runIdentifier, runIdentifierAvailable := service.contextAccessor.RunIdentifier(executionContext)
	if !runIdentifierAvailable {
		executionContext = service.contextAccessor.WithRunIdentifier(executionContext, "")
		runIdentifier, _ = service.contextAccessor.RunIdentifier(executionContext)
	}

	logger := service.logger.With(zap.String(runIdentifierLogFieldConstant, runIdentifier))
	summary := Summary{
		RunID:      runIdentifier,
		Repository: options.Repository,
		DryRun:     options.DryRun,
		Skipped:    []string{},
		Outcomes:   []VersionOutcome{},
	}

	if len(strings.TrimSpace(options.Token)) == 0 {
		return summary, AuthError{Cause: ErrCredentialMissing}
	}

	logger.Info(runStartedMessageConstant, zap.String(repositoryLogFieldConstant, options.Repository), zap.Bool(dryRunLogFieldConstant, options.DryRun))

	records, listError := service.lister.List(executionContext)
	if listError != nil {
		return summary, ListingError{Subject: ListingSubjectBucket, Cause: listError}
	}
	summary.Discovered = len(records)
	logger.Info(versionsDiscoveredMessageConstant, zap.Int(countLogFieldConstant, len(records)))

	existingReleases, releasesError := service.releases.ListReleases(executionContext, options.Repository)
	if releasesError != nil {
		if isUnauthorized(releasesError) {
			return summary, AuthError{Cause: releasesError}
		}
		return summary, ListingError{Subject: ListingSubjectReleases, Cause: releasesError}
	}
	logger.Info(releasesListedMessageConstant, zap.Int(countLogFieldConstant, len(existingReleases)))

	tagNames := make([]string, 0, len(existingReleases))
	for _, release := range existingReleases {
		tagNames = append(tagNames, release.TagName)
	}
	releaseSet := versions.NewReleaseSet(tagNames, options.TagPrefix)

	pending := versions.Reconcile(releaseSet, records)
	for _, record := range records {
		if releaseSet.Contains(record.Version) {
			summary.Skipped = append(summary.Skipped, record.Version)
			logger.Info(versionSkippedMessageConstant, zap.String(versionLogFieldConstant, record.Version))
		}
	}
	logger.Info(versionsReconciledMessageConstant, zap.Int(pendingLogFieldConstant, len(pending)), zap.Int(skippedLogFieldConstant, len(summary.Skipped)))

	for _, record := range pending {
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}

		outcome, fatalError := service.processVersion(executionContext, logger, record, options)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if fatalError != nil {
			return summary, fatalError
		}
	}

	logger.Info(runCompletedMessageConstant,
		zap.Int(publishedLogFieldConstant, summary.CountStatus(OutcomeStatusPublished)),
		zap.Int(skippedLogFieldConstant, len(summary.Skipped)),
		zap.Int(failedLogFieldConstant, len(summary.Failures())),
	)

	return summary, nil
}

func (service *Service) processVersion(executionContext context.Context, logger *zap.Logger, record bucket.VersionRecord, options RunOptions) (VersionOutcome, error) {
	outcome := VersionOutcome{
		Version:    record.Version,
		ReleaseTag: versions.TagName(record.Version, options.TagPrefix),
	}

	if options.DryRun {
		outcome.Status = OutcomeStatusPlanned
		logger.Info(versionPlannedMessageConstant, zap.String(versionLogFieldConstant, record.Version), zap.String(tagLogFieldConstant, outcome.ReleaseTag))
		return outcome, nil
	}

	fetchResult, fetchError := service.fetcher.Fetch(executionContext, record)
	if fetchError != nil {
		outcome.Status = OutcomeStatusDownloadFailed
		outcome.recordError(DownloadError{Version: record.Version, Cause: fetchError})
		logFailure(logger, outcome)
		return outcome, nil
	}
	outcome.LocalPath = fetchResult.Path
	outcome.ReusedLocalFile = fetchResult.Skipped

	publishResult, publishError := service.publisher.Publish(executionContext, record, fetchResult.Path)
	if publishError != nil {
		var uploadError releases.UploadError
		if errors.As(publishError, &uploadError) {
			outcome.Status = OutcomeStatusUploadFailed
			outcome.ReleaseTag = uploadError.Release.TagName
			outcome.ReleaseURL = uploadError.Release.HTMLURL
			outcome.AssetName = uploadError.AssetName
			outcome.recordError(UploadError{
				Version:    record.Version,
				ReleaseTag: uploadError.Release.TagName,
				ReleaseURL: uploadError.Release.HTMLURL,
				AssetName:  uploadError.AssetName,
				Cause:      publishError,
			})
			logger.Warn(orphanedReleaseMessageConstant,
				zap.String(versionLogFieldConstant, record.Version),
				zap.String(tagLogFieldConstant, outcome.ReleaseTag),
				zap.String(releaseURLLogFieldConstant, outcome.ReleaseURL),
				zap.String(pathLogFieldConstant, outcome.LocalPath),
			)
		} else {
			outcome.Status = OutcomeStatusPublishFailed
			outcome.recordError(PublishError{Version: record.Version, ReleaseTag: outcome.ReleaseTag, Cause: publishError})
			logFailure(logger, outcome)
		}

		if isUnauthorized(publishError) {
			return outcome, AuthError{Cause: publishError}
		}
		return outcome, nil
	}

	outcome.Status = OutcomeStatusPublished
	outcome.ReleaseTag = publishResult.Release.TagName
	outcome.ReleaseURL = publishResult.Release.HTMLURL
	outcome.AssetName = publishResult.AssetName
	logger.Info(versionPublishedMessageConstant,
		zap.String(versionLogFieldConstant, record.Version),
		zap.String(tagLogFieldConstant, outcome.ReleaseTag),
		zap.String(releaseURLLogFieldConstant, outcome.ReleaseURL),
	)
	return outcome, nil
}

func (outcome *VersionOutcome) recordError(err error) {
	outcome.Error = err
	outcome.ErrorMessage = err.Error()
}

func logFailure(logger *zap.Logger, outcome VersionOutcome) {
	logger.Warn(versionFailedMessageConstant,
		zap.String(versionLogFieldConstant, outcome.Version),
		zap.String(statusLogFieldConstant, string(outcome.Status)),
		zap.Error(outcome.Error),
	)
}

func isUnauthorized(err error) bool {
	var statusError githubapi.ResponseStatusError
	return errors.As(err, &statusError) && statusError.Unauthorized()
}
