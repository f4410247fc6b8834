package bucket_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
)

const (
	testBucketPathConstant       = "/shopper-distribution/"
	testListingHeaderConstant    = `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>shopper-distribution</Name>`
	testListingFooterConstant    = `</ListBucketResult>`
	testListingObjectTemplate    = `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>"etag"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`
	testListingTruncatedTemplate = `<IsTruncated>%t</IsTruncated>`
	testKeyPrefixConstant        = "shopper-"
	testKeySuffixConstant        = ".apk"
)

type testListedObject struct {
	key          string
	lastModified string
	size         int64
}

func renderListing(truncated bool, objects ...testListedObject) string {
	builder := strings.Builder{}
	builder.WriteString(testListingHeaderConstant)
	builder.WriteString(fmt.Sprintf(testListingTruncatedTemplate, truncated))
	for _, object := range objects {
		builder.WriteString(fmt.Sprintf(testListingObjectTemplate, object.key, object.lastModified, object.size))
	}
	builder.WriteString(testListingFooterConstant)
	return builder.String()
}

type listingServer struct {
	mutex        sync.Mutex
	pages        map[string]string
	statusCode   int
	seenMarkers  []string
	requestCount int
}

func (server *listingServer) ServeHTTP(responseWriter http.ResponseWriter, request *http.Request) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.requestCount++
	marker := request.URL.Query().Get("marker")
	server.seenMarkers = append(server.seenMarkers, marker)

	if server.statusCode != 0 {
		responseWriter.WriteHeader(server.statusCode)
		return
	}
	if request.URL.Path != testBucketPathConstant {
		responseWriter.WriteHeader(http.StatusNotFound)
		return
	}

	page, exists := server.pages[marker]
	if !exists {
		responseWriter.WriteHeader(http.StatusBadRequest)
		return
	}
	responseWriter.Header().Set("Content-Type", "application/xml")
	_, _ = fmt.Fprint(responseWriter, page)
}

func newTestHTTPLister(testInstance *testing.T, serverURL string, ordering bucket.Ordering) *bucket.HTTPLister {
	testInstance.Helper()
	lister, creationError := bucket.NewHTTPLister(zap.NewNop(), http.DefaultClient, bucket.ListerConfiguration{
		BaseURL:  serverURL + testBucketPathConstant,
		Naming:   bucket.NamingConfiguration{KeyPrefix: testKeyPrefixConstant, KeySuffix: testKeySuffixConstant},
		Ordering: ordering,
	})
	require.NoError(testInstance, creationError)
	return lister
}

func TestHTTPListerParsesListing(testInstance *testing.T) {
	serverState := &listingServer{pages: map[string]string{
		"": renderListing(false,
			testListedObject{key: "shopper-3.10.0.apk", lastModified: "2024-03-01T08:30:15.000Z", size: 3145728},
			testListedObject{key: "shopper-3.5.2.apk", lastModified: "2024-01-15T10:00:00Z", size: 2097152},
			testListedObject{key: "readme.txt", lastModified: "2024-01-01T00:00:00Z", size: 12},
			testListedObject{key: "shopper-latest.apk", lastModified: "2024-01-01T00:00:00Z", size: 12},
		),
	}}
	server := httptest.NewServer(serverState)
	defer server.Close()

	lister := newTestHTTPLister(testInstance, server.URL, bucket.OrderingAscending)
	records, listError := lister.List(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, records, 2)

	first := records[0]
	require.Equal(testInstance, "3.5.2", first.Version)
	require.Equal(testInstance, []int{3, 5, 2}, first.Components)
	require.Equal(testInstance, "shopper-3.5.2.apk", first.Key)
	require.Equal(testInstance, int64(2097152), first.SizeBytes)
	require.Equal(testInstance, "2.0", first.FormattedSizeMegabytes())
	require.Equal(testInstance, "15.01.24 10:00:00", first.FormattedLastModified())
	require.True(testInstance, first.LastModified.Equal(time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)))
	require.Equal(testInstance, server.URL+testBucketPathConstant+"shopper-3.5.2.apk", first.DownloadURL)

	require.Equal(testInstance, "3.10.0", records[1].Version)
	require.Equal(testInstance, "01.03.24 08:30:15", records[1].FormattedLastModified())
}

func TestHTTPListerOrderingModes(testInstance *testing.T) {
	listing := renderListing(false,
		testListedObject{key: "shopper-1.10.0.apk", lastModified: "2024-01-01T00:00:00Z", size: 1},
		testListedObject{key: "shopper-1.9.0.apk", lastModified: "2024-01-01T00:00:00Z", size: 1},
		testListedObject{key: "shopper-1.11.0.apk", lastModified: "2024-01-01T00:00:00Z", size: 1},
	)

	testCases := []struct {
		name     string
		ordering bucket.Ordering
		expected []string
	}{
		{name: "ascending", ordering: bucket.OrderingAscending, expected: []string{"1.9.0", "1.10.0", "1.11.0"}},
		{name: "listing", ordering: bucket.OrderingListing, expected: []string{"1.10.0", "1.9.0", "1.11.0"}},
		{name: "reverse_listing", ordering: bucket.OrderingReverseListing, expected: []string{"1.11.0", "1.9.0", "1.10.0"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := httptest.NewServer(&listingServer{pages: map[string]string{"": listing}})
			defer server.Close()

			records, listError := newTestHTTPLister(testInstance, server.URL, testCase.ordering).List(context.Background())
			require.NoError(testInstance, listError)
			require.Equal(testInstance, testCase.expected, recordVersions(records))
		})
	}
}

func TestHTTPListerFollowsPagination(testInstance *testing.T) {
	serverState := &listingServer{pages: map[string]string{
		"": renderListing(true,
			testListedObject{key: "shopper-1.0.0.apk", lastModified: "2024-01-01T00:00:00Z", size: 1},
			testListedObject{key: "shopper-1.1.0.apk", lastModified: "2024-01-02T00:00:00Z", size: 1},
		),
		"shopper-1.1.0.apk": renderListing(false,
			testListedObject{key: "shopper-1.2.0.apk", lastModified: "2024-01-03T00:00:00Z", size: 1},
		),
	}}
	server := httptest.NewServer(serverState)
	defer server.Close()

	records, listError := newTestHTTPLister(testInstance, server.URL, bucket.OrderingListing).List(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"1.0.0", "1.1.0", "1.2.0"}, recordVersions(records))
	require.Equal(testInstance, []string{"", "shopper-1.1.0.apk"}, serverState.seenMarkers)
}

func TestHTTPListerFailures(testInstance *testing.T) {
	testCases := []struct {
		name               string
		server             *listingServer
		expectedStatusCode int
	}{
		{
			name:               "server_error",
			server:             &listingServer{statusCode: http.StatusInternalServerError},
			expectedStatusCode: http.StatusInternalServerError,
		},
		{
			name:               "access_denied",
			server:             &listingServer{statusCode: http.StatusForbidden},
			expectedStatusCode: http.StatusForbidden,
		},
		{
			name:   "malformed_document",
			server: &listingServer{pages: map[string]string{"": "<ListBucketResult><Contents><Key>"}},
		},
		{
			name:   "unexpected_document",
			server: &listingServer{pages: map[string]string{"": "<Error><Code>NoSuchBucket</Code></Error>"}},
		},
		{
			name: "invalid_timestamp",
			server: &listingServer{pages: map[string]string{"": renderListing(false,
				testListedObject{key: "shopper-1.0.0.apk", lastModified: "yesterday", size: 1},
			)}},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			server := httptest.NewServer(testCase.server)
			defer server.Close()

			records, listError := newTestHTTPLister(testInstance, server.URL, bucket.OrderingAscending).List(context.Background())
			require.Error(testInstance, listError)
			require.Nil(testInstance, records)

			var listingError bucket.ListingError
			require.True(testInstance, errors.As(listError, &listingError))
			require.Equal(testInstance, testCase.expectedStatusCode, listingError.StatusCode)
		})
	}
}

func TestHTTPListerTransportFailure(testInstance *testing.T) {
	server := httptest.NewServer(&listingServer{})
	serverURL := server.URL
	server.Close()

	_, listError := newTestHTTPLister(testInstance, serverURL, bucket.OrderingAscending).List(context.Background())
	require.Error(testInstance, listError)
	require.IsType(testInstance, bucket.ListingError{}, listError)
}

func TestNewHTTPListerValidation(testInstance *testing.T) {
	testCases := []struct {
		name        string
		httpClient  bucket.HTTPClient
		baseURL     string
		expectedErr error
	}{
		{name: "missing_client", httpClient: nil, baseURL: "https://bucket.example.com/", expectedErr: bucket.ErrHTTPClientMissing},
		{name: "missing_base_url", httpClient: http.DefaultClient, baseURL: " ", expectedErr: bucket.ErrBaseURLMissing},
		{name: "relative_base_url", httpClient: http.DefaultClient, baseURL: "bucket/path"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			lister, creationError := bucket.NewHTTPLister(zap.NewNop(), testCase.httpClient, bucket.ListerConfiguration{BaseURL: testCase.baseURL})
			require.Error(testInstance, creationError)
			require.Nil(testInstance, lister)
			if testCase.expectedErr != nil {
				require.ErrorIs(testInstance, creationError, testCase.expectedErr)
			}
		})
	}
}

func TestParseBaseURLAppendsSlash(testInstance *testing.T) {
	parsedURL, parseError := bucket.ParseBaseURL("https://storage.example.net/distribution?list-type=2")
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, "https://storage.example.net/distribution/", parsedURL.String())
}

func TestNamingConfigurationExtractVersion(testInstance *testing.T) {
	naming := bucket.NamingConfiguration{KeyPrefix: testKeyPrefixConstant, KeySuffix: testKeySuffixConstant}

	testCases := []struct {
		key             string
		expectedVersion string
		expectedMatch   bool
	}{
		{key: "shopper-3.5.2.apk", expectedVersion: "3.5.2", expectedMatch: true},
		{key: "releases/android/shopper-3.6.0.apk", expectedVersion: "3.6.0", expectedMatch: true},
		{key: "shopper-.apk", expectedMatch: false},
		{key: "courier-1.0.0.apk", expectedMatch: false},
		{key: "shopper-1.0.0.aab", expectedMatch: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.key, func(testInstance *testing.T) {
			version, matches := naming.ExtractVersion(testCase.key)
			require.Equal(testInstance, testCase.expectedMatch, matches)
			require.Equal(testInstance, testCase.expectedVersion, version)
		})
	}
}
