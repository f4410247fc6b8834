package bucket

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	markerQueryParameterConstant          = "marker"
	listingResponseLimitBytesConstant     = 64 << 20
	maximumListingPagesConstant           = 1000
	httpClientMissingErrorMessageConstant = "http client not configured"
	listingDecodeErrorTemplateConstant    = "unable to decode listing: %w"
	listingRequestErrorTemplateConstant   = "unable to build listing request: %w"
	listingPaginationErrorMessageConstant = "listing is truncated but provides no continuation marker"
	listingPageLimitErrorMessageConstant  = "listing exceeded the page limit"
	listingPageFetchedLogMessageConstant  = "bucket listing page fetched"
	listingCompletedLogMessageConstant    = "bucket listing completed"
	logFieldBucketURLConstant             = "bucket_url"
	logFieldObjectCountConstant           = "object_count"
	logFieldRecordCountConstant           = "record_count"
	logFieldMarkerConstant                = "marker"
	logFieldTruncatedConstant             = "truncated"
)

var (
	// ErrHTTPClientMissing indicates the lister was constructed without an HTTP client.
	ErrHTTPClientMissing = errors.New(httpClientMissingErrorMessageConstant)

	errMissingMarker     = errors.New(listingPaginationErrorMessageConstant)
	errPageLimitExceeded = errors.New(listingPageLimitErrorMessageConstant)
)

// Lister produces the ordered set of package versions stored in a bucket.
type Lister interface {
	List(listingContext context.Context) ([]VersionRecord, error)
}

// HTTPClient executes HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ListerConfiguration captures the settings shared by bucket listers.
type ListerConfiguration struct {
	BaseURL  string
	Naming   NamingConfiguration
	Ordering Ordering
}

// HTTPLister reads the anonymous S3 XML object listing served at the bucket base URL.
type HTTPLister struct {
	logger     *zap.Logger
	httpClient HTTPClient
	baseURL    *url.URL
	naming     NamingConfiguration
	ordering   Ordering
}

type listBucketResult struct {
	XMLName     xml.Name       `xml:"ListBucketResult"`
	IsTruncated bool           `xml:"IsTruncated"`
	NextMarker  string         `xml:"NextMarker"`
	Contents    []listedObject `xml:"Contents"`
}

type listedObject struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	Size         int64  `xml:"Size"`
}

// NewHTTPLister validates the configuration and constructs an HTTPLister.
func NewHTTPLister(logger *zap.Logger, httpClient HTTPClient, configuration ListerConfiguration) (*HTTPLister, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL, baseURLError := ParseBaseURL(configuration.BaseURL)
	if baseURLError != nil {
		return nil, baseURLError
	}

	return &HTTPLister{
		logger:     logger,
		httpClient: httpClient,
		baseURL:    baseURL,
		naming:     configuration.Naming,
		ordering:   configuration.Ordering,
	}, nil
}

// List fetches every listing page, normalizes the objects, and orders the resulting records.
func (lister *HTTPLister) List(listingContext context.Context) ([]VersionRecord, error) {
	normalizer := newRecordNormalizer(lister.baseURL, lister.naming, lister.logger)
	bucketURL := lister.baseURL.String()
	records := make([]VersionRecord, 0)
	marker := ""

	for pageIndex := 0; ; pageIndex++ {
		if pageIndex >= maximumListingPagesConstant {
			return nil, ListingError{BucketURL: bucketURL, Cause: errPageLimitExceeded}
		}

		page, pageError := lister.fetchPage(listingContext, marker)
		if pageError != nil {
			return nil, pageError
		}

		lister.logger.Debug(
			listingPageFetchedLogMessageConstant,
			zap.String(logFieldBucketURLConstant, bucketURL),
			zap.String(logFieldMarkerConstant, marker),
			zap.Int(logFieldObjectCountConstant, len(page.Contents)),
			zap.Bool(logFieldTruncatedConstant, page.IsTruncated),
		)

		for _, object := range page.Contents {
			lastModified, timestampError := parseLastModified(object.Key, object.LastModified)
			if timestampError != nil {
				return nil, ListingError{BucketURL: bucketURL, Cause: timestampError}
			}
			record, isPackage, normalizeError := normalizer.normalize(object.Key, lastModified, object.Size)
			if normalizeError != nil {
				return nil, ListingError{BucketURL: bucketURL, Cause: normalizeError}
			}
			if isPackage {
				records = append(records, record)
			}
		}

		if !page.IsTruncated {
			break
		}

		nextMarker := page.NextMarker
		if len(nextMarker) == 0 && len(page.Contents) > 0 {
			nextMarker = page.Contents[len(page.Contents)-1].Key
		}
		if len(nextMarker) == 0 || nextMarker == marker {
			return nil, ListingError{BucketURL: bucketURL, Cause: errMissingMarker}
		}
		marker = nextMarker
	}

	lister.logger.Info(
		listingCompletedLogMessageConstant,
		zap.String(logFieldBucketURLConstant, bucketURL),
		zap.Int(logFieldRecordCountConstant, len(records)),
	)

	return ApplyOrdering(records, lister.ordering), nil
}

func (lister *HTTPLister) fetchPage(listingContext context.Context, marker string) (listBucketResult, error) {
	bucketURL := lister.baseURL.String()
	pageURL := *lister.baseURL
	if len(marker) > 0 {
		queryValues := url.Values{}
		queryValues.Set(markerQueryParameterConstant, marker)
		pageURL.RawQuery = queryValues.Encode()
	}

	request, requestError := http.NewRequestWithContext(listingContext, http.MethodGet, pageURL.String(), nil)
	if requestError != nil {
		return listBucketResult{}, ListingError{BucketURL: bucketURL, Cause: fmt.Errorf(listingRequestErrorTemplateConstant, requestError)}
	}

	response, responseError := lister.httpClient.Do(request)
	if responseError != nil {
		return listBucketResult{}, ListingError{BucketURL: bucketURL, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, listingResponseLimitBytesConstant))
		return listBucketResult{}, ListingError{BucketURL: bucketURL, StatusCode: response.StatusCode}
	}

	var page listBucketResult
	decodeError := xml.NewDecoder(io.LimitReader(response.Body, listingResponseLimitBytesConstant)).Decode(&page)
	if decodeError != nil {
		return listBucketResult{}, ListingError{BucketURL: bucketURL, Cause: fmt.Errorf(listingDecodeErrorTemplateConstant, decodeError)}
	}

	return page, nil
}
