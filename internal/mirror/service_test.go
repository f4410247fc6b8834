package mirror_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
	"github.com/temirov/popper/internal/fetcher"
	"github.com/temirov/popper/internal/githubapi"
	"github.com/temirov/popper/internal/mirror"
	"github.com/temirov/popper/internal/releases"
	"github.com/temirov/popper/internal/utils"
)

const (
	testRepositoryConstant = "Katrovsky/ShopperPopper"
	testTokenConstant      = "test-token"
)

type stubLister struct {
	records []bucket.VersionRecord
	err     error
	calls   int
}

func (lister *stubLister) List(context.Context) ([]bucket.VersionRecord, error) {
	lister.calls++
	return lister.records, lister.err
}

type stubCatalog struct {
	releases []githubapi.Release
	err      error
	calls    int
}

func (catalog *stubCatalog) ListReleases(context.Context, string) ([]githubapi.Release, error) {
	catalog.calls++
	return catalog.releases, catalog.err
}

type stubFetcher struct {
	failures map[string]error
	fetched  []string
}

func (assetFetcher *stubFetcher) Fetch(_ context.Context, record bucket.VersionRecord) (fetcher.Result, error) {
	assetFetcher.fetched = append(assetFetcher.fetched, record.Version)
	if failure, exists := assetFetcher.failures[record.Version]; exists {
		return fetcher.Result{}, failure
	}
	return fetcher.Result{Path: "/downloads/Shopper_" + record.Version + ".apk"}, nil
}

type stubPublisher struct {
	failures  map[string]error
	published []string
	paths     []string
}

func (publisher *stubPublisher) Publish(_ context.Context, record bucket.VersionRecord, localPath string) (releases.Result, error) {
	publisher.published = append(publisher.published, record.Version)
	publisher.paths = append(publisher.paths, localPath)
	if failure, exists := publisher.failures[record.Version]; exists {
		return releases.Result{}, failure
	}
	return releases.Result{
		Release:   githubapi.Release{TagName: "v" + record.Version, HTMLURL: "https://github.com/Katrovsky/ShopperPopper/releases/tag/v" + record.Version},
		AssetName: "Shopper_" + record.Version + ".apk",
	}, nil
}

type serviceFixture struct {
	lister    *stubLister
	catalog   *stubCatalog
	fetcher   *stubFetcher
	publisher *stubPublisher
	service   *mirror.Service
}

func newServiceFixture(testInstance *testing.T, versions []string, releasedTags []string) *serviceFixture {
	testInstance.Helper()
	records := make([]bucket.VersionRecord, 0, len(versions))
	for _, version := range versions {
		records = append(records, bucket.VersionRecord{Version: version, Key: "shopper-" + version + ".apk"})
	}
	existing := make([]githubapi.Release, 0, len(releasedTags))
	for _, tag := range releasedTags {
		existing = append(existing, githubapi.Release{TagName: tag})
	}

	fixture := &serviceFixture{
		lister:    &stubLister{records: records},
		catalog:   &stubCatalog{releases: existing},
		fetcher:   &stubFetcher{failures: map[string]error{}},
		publisher: &stubPublisher{failures: map[string]error{}},
	}
	service, serviceError := mirror.NewService(mirror.ServiceDependencies{
		Logger:    zap.NewNop(),
		Lister:    fixture.lister,
		Releases:  fixture.catalog,
		Fetcher:   fixture.fetcher,
		Publisher: fixture.publisher,
	})
	require.NoError(testInstance, serviceError)
	fixture.service = service
	return fixture
}

func defaultRunOptions() mirror.RunOptions {
	return mirror.RunOptions{Repository: testRepositoryConstant, TagPrefix: "v", Token: testTokenConstant}
}

func outcomeStatuses(summary mirror.Summary) map[string]mirror.OutcomeStatus {
	statuses := make(map[string]mirror.OutcomeStatus, len(summary.Outcomes))
	for _, outcome := range summary.Outcomes {
		statuses[outcome.Version] = outcome.Status
	}
	return statuses
}

func TestServiceRunPublishesPendingVersions(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, []string{"2.1.0", "2.2.0", "2.3.0"}, []string{"v2.1.0"})

	summary, runError := fixture.service.Run(context.Background(), defaultRunOptions())
	require.NoError(testInstance, runError)
	require.NoError(testInstance, summary.Err())

	require.Equal(testInstance, 3, summary.Discovered)
	require.Equal(testInstance, []string{"2.1.0"}, summary.Skipped)
	require.Equal(testInstance, []string{"2.2.0", "2.3.0"}, fixture.fetcher.fetched)
	require.Equal(testInstance, []string{"2.2.0", "2.3.0"}, fixture.publisher.published)
	require.Equal(testInstance, []string{"/downloads/Shopper_2.2.0.apk", "/downloads/Shopper_2.3.0.apk"}, fixture.publisher.paths)
	require.Equal(testInstance, 2, summary.CountStatus(mirror.OutcomeStatusPublished))
	require.Equal(testInstance, "v2.2.0", summary.Outcomes[0].ReleaseTag)
	require.NotEmpty(testInstance, summary.RunID)
}

func TestServiceRunRecoverableFailures(testInstance *testing.T) {
	downloadFailure := fetcher.DownloadError{Version: "2.2.0", Reason: fetcher.FailureReasonSizeMismatch, ExpectedBytes: 100, ReceivedBytes: 10}
	createFailure := releases.CreateError{TagName: "v2.3.0", Cause: errors.New("validation failed")}
	uploadFailure := releases.UploadError{
		Release:   githubapi.Release{TagName: "v2.4.0", HTMLURL: "https://github.com/Katrovsky/ShopperPopper/releases/tag/v2.4.0"},
		AssetName: "Shopper_2.4.0.apk",
		Cause:     errors.New("connection reset"),
	}

	fixture := newServiceFixture(testInstance, []string{"2.2.0", "2.3.0", "2.4.0", "2.5.0"}, nil)
	fixture.fetcher.failures["2.2.0"] = downloadFailure
	fixture.publisher.failures["2.3.0"] = createFailure
	fixture.publisher.failures["2.4.0"] = uploadFailure

	summary, runError := fixture.service.Run(context.Background(), defaultRunOptions())
	require.NoError(testInstance, runError)

	require.Equal(testInstance, map[string]mirror.OutcomeStatus{
		"2.2.0": mirror.OutcomeStatusDownloadFailed,
		"2.3.0": mirror.OutcomeStatusPublishFailed,
		"2.4.0": mirror.OutcomeStatusUploadFailed,
		"2.5.0": mirror.OutcomeStatusPublished,
	}, outcomeStatuses(summary))
	require.Equal(testInstance, []string{"2.3.0", "2.4.0", "2.5.0"}, fixture.publisher.published)
	require.Len(testInstance, summary.Failures(), 3)

	joinedError := summary.Err()
	require.Error(testInstance, joinedError)

	var downloadError mirror.DownloadError
	require.ErrorAs(testInstance, joinedError, &downloadError)
	require.Equal(testInstance, "2.2.0", downloadError.Version)
	var fetchError fetcher.DownloadError
	require.ErrorAs(testInstance, joinedError, &fetchError)
	require.Equal(testInstance, fetcher.FailureReasonSizeMismatch, fetchError.Reason)

	var publishError mirror.PublishError
	require.ErrorAs(testInstance, joinedError, &publishError)
	require.Equal(testInstance, "v2.3.0", publishError.ReleaseTag)

	var uploadError mirror.UploadError
	require.ErrorAs(testInstance, joinedError, &uploadError)
	require.Equal(testInstance, "v2.4.0", uploadError.ReleaseTag)
	require.Equal(testInstance, "https://github.com/Katrovsky/ShopperPopper/releases/tag/v2.4.0", uploadError.ReleaseURL)
	require.False(testInstance, mirror.IsFatal(joinedError))

	orphan := summary.Outcomes[2]
	require.Equal(testInstance, "https://github.com/Katrovsky/ShopperPopper/releases/tag/v2.4.0", orphan.ReleaseURL)
	require.Equal(testInstance, "/downloads/Shopper_2.4.0.apk", orphan.LocalPath)
	require.NotEmpty(testInstance, orphan.ErrorMessage)
}

func TestServiceRunFatalFailures(testInstance *testing.T) {
	unauthorized := githubapi.ResponseStatusError{Operation: githubapi.OperationListReleases, StatusCode: http.StatusUnauthorized}
	serverFailure := githubapi.ResponseStatusError{Operation: githubapi.OperationListReleases, StatusCode: http.StatusInternalServerError}

	testCases := []struct {
		name             string
		configure        func(fixture *serviceFixture)
		options          mirror.RunOptions
		expectAuth       bool
		expectedSubject  mirror.ListingSubject
		expectListerCall bool
	}{
		{
			name:       "missing_token",
			configure:  func(*serviceFixture) {},
			options:    mirror.RunOptions{Repository: testRepositoryConstant, TagPrefix: "v"},
			expectAuth: true,
		},
		{
			name: "bucket_listing_failure",
			configure: func(fixture *serviceFixture) {
				fixture.lister.err = bucket.ListingError{BucketURL: "https://bucket.example/", StatusCode: http.StatusForbidden}
			},
			options:          defaultRunOptions(),
			expectedSubject:  mirror.ListingSubjectBucket,
			expectListerCall: true,
		},
		{
			name:             "release_listing_unauthorized",
			configure:        func(fixture *serviceFixture) { fixture.catalog.err = unauthorized },
			options:          defaultRunOptions(),
			expectAuth:       true,
			expectListerCall: true,
		},
		{
			name:             "release_listing_failure",
			configure:        func(fixture *serviceFixture) { fixture.catalog.err = serverFailure },
			options:          defaultRunOptions(),
			expectedSubject:  mirror.ListingSubjectReleases,
			expectListerCall: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture(testInstance, []string{"2.2.0"}, nil)
			testCase.configure(fixture)

			_, runError := fixture.service.Run(context.Background(), testCase.options)
			require.Error(testInstance, runError)
			require.True(testInstance, mirror.IsFatal(runError))
			require.Empty(testInstance, fixture.fetcher.fetched)
			require.Empty(testInstance, fixture.publisher.published)
			require.Equal(testInstance, testCase.expectListerCall, fixture.lister.calls > 0)

			if testCase.expectAuth {
				var authError mirror.AuthError
				require.ErrorAs(testInstance, runError, &authError)
				return
			}
			var listingError mirror.ListingError
			require.ErrorAs(testInstance, runError, &listingError)
			require.Equal(testInstance, testCase.expectedSubject, listingError.Subject)
		})
	}
}

func TestServiceRunUnauthorizedPublishAbortsBatch(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, []string{"2.2.0", "2.3.0"}, nil)
	fixture.publisher.failures["2.2.0"] = releases.CreateError{
		TagName: "v2.2.0",
		Cause:   githubapi.ResponseStatusError{Operation: githubapi.OperationCreateRelease, StatusCode: http.StatusUnauthorized},
	}

	summary, runError := fixture.service.Run(context.Background(), defaultRunOptions())

	var authError mirror.AuthError
	require.ErrorAs(testInstance, runError, &authError)
	require.Equal(testInstance, []string{"2.2.0"}, fixture.publisher.published)
	require.Len(testInstance, summary.Outcomes, 1)
	require.Equal(testInstance, mirror.OutcomeStatusPublishFailed, summary.Outcomes[0].Status)
}

func TestServiceRunDryRun(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, []string{"2.1.0", "2.2.0"}, []string{"v2.1.0"})
	options := defaultRunOptions()
	options.DryRun = true

	summary, runError := fixture.service.Run(context.Background(), options)
	require.NoError(testInstance, runError)
	require.True(testInstance, summary.DryRun)
	require.Empty(testInstance, fixture.fetcher.fetched)
	require.Empty(testInstance, fixture.publisher.published)
	require.Equal(testInstance, map[string]mirror.OutcomeStatus{"2.2.0": mirror.OutcomeStatusPlanned}, outcomeStatuses(summary))
	require.Equal(testInstance, "v2.2.0", summary.Outcomes[0].ReleaseTag)
}

func TestServiceRunUsesContextRunIdentifier(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, nil, nil)
	executionContext := utils.NewCommandContextAccessor().WithRunIdentifier(context.Background(), "run-42")

	summary, runError := fixture.service.Run(executionContext, defaultRunOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "run-42", summary.RunID)
	require.Zero(testInstance, summary.Discovered)
	require.Empty(testInstance, summary.Outcomes)
}

func TestServiceRunStopsOnCancelledContext(testInstance *testing.T) {
	fixture := newServiceFixture(testInstance, []string{"2.2.0"}, nil)
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, runError := fixture.service.Run(cancelledContext, defaultRunOptions())
	require.ErrorIs(testInstance, runError, context.Canceled)
	require.Empty(testInstance, fixture.fetcher.fetched)
}

func TestNewServiceValidation(testInstance *testing.T) {
	_, missingListerError := mirror.NewService(mirror.ServiceDependencies{})
	require.ErrorIs(testInstance, missingListerError, mirror.ErrListerMissing)

	_, missingCatalogError := mirror.NewService(mirror.ServiceDependencies{Lister: &stubLister{}})
	require.ErrorIs(testInstance, missingCatalogError, mirror.ErrReleaseCatalogMissing)

	_, missingFetcherError := mirror.NewService(mirror.ServiceDependencies{Lister: &stubLister{}, Releases: &stubCatalog{}})
	require.ErrorIs(testInstance, missingFetcherError, mirror.ErrFetcherMissing)

	_, missingPublisherError := mirror.NewService(mirror.ServiceDependencies{Lister: &stubLister{}, Releases: &stubCatalog{}, Fetcher: &stubFetcher{}})
	require.ErrorIs(testInstance, missingPublisherError, mirror.ErrPublisherMissing)
}
