package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultBaseURLConstant           = "https://api.github.com"
	acceptHeaderNameConstant         = "Accept"
	acceptHeaderValueConstant        = "application/vnd.github+json"
	apiVersionHeaderNameConstant     = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant    = "2022-11-28"
	contentTypeHeaderNameConstant    = "Content-Type"
	jsonContentTypeConstant          = "application/json"
	defaultAssetContentTypeConstant  = "application/octet-stream"
	repositoriesPathSegmentConstant  = "repos"
	releasesPathSegmentConstant      = "releases"
	perPageQueryParameterConstant    = "per_page"
	pageQueryParameterConstant       = "page"
	nameQueryParameterConstant       = "name"
	releasesPerPageConstant          = 100
	maximumReleasePagesConstant      = 100
	errorBodyLimitBytesConstant      = 4096
	uriTemplateOpeningConstant       = "{"
	repositorySeparatorConstant      = "/"
	repositoryFieldNameConstant      = "repository"
	tagNameFieldNameConstant         = "tag_name"
	uploadURLFieldNameConstant       = "upload_url"
	assetNameFieldNameConstant       = "asset_name"
	requiredValueMessageConstant     = "value required"
	repositoryFormatMessageConstant  = "expected owner/name"
	httpClientNotConfiguredMessage   = "github api http client not configured"
	baseURLInvalidMessageConstant    = "github api base url must be absolute"
	assetSizeNegativeMessageConstant = "asset size must not be negative"
	assetSizeFieldNameConstant       = "asset_size"
	releasePageLimitMessageConstant  = "release listing exceeded page limit"
)

var (
	// ErrHTTPClientNotConfigured indicates the client was constructed without an HTTP client.
	ErrHTTPClientNotConfigured = errors.New(httpClientNotConfiguredMessage)

	// ErrBaseURLInvalid indicates the configured API base URL cannot be used.
	ErrBaseURLInvalid = errors.New(baseURLInvalidMessageConstant)

	// ErrReleasePageLimitExceeded indicates every permitted release page came back full.
	ErrReleasePageLimitExceeded = errors.New(releasePageLimitMessageConstant)
)

// HTTPClient executes GitHub API requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ServiceConfiguration describes the GitHub API endpoint.
type ServiceConfiguration struct {
	BaseURL string
}

// Release mirrors the release fields consumed by the mirror.
type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	UploadURL  string `json:"upload_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// ReleaseRequest is the payload of a release creation.
type ReleaseRequest struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// Asset describes an uploaded release asset.
type Asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	State              string `json:"state"`
	ContentType        string `json:"content_type"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// AssetUpload describes the binary attached to a release.
type AssetUpload struct {
	UploadURL   string
	Name        string
	ContentType string
	Content     io.Reader
	Size        int64
}

// Client issues GitHub REST API calls.
type Client struct {
	httpClient HTTPClient
	baseURL    *url.URL
}

// NewClient constructs a GitHub API client for the configured endpoint.
func NewClient(httpClient HTTPClient, configuration ServiceConfiguration) (*Client, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientNotConfigured
	}

	baseURLValue := strings.TrimSpace(configuration.BaseURL)
	if len(baseURLValue) == 0 {
		baseURLValue = defaultBaseURLConstant
	}
	parsedBaseURL, parseError := url.Parse(baseURLValue)
	if parseError != nil {
		return nil, errors.Join(ErrBaseURLInvalid, parseError)
	}
	if !parsedBaseURL.IsAbs() || len(parsedBaseURL.Host) == 0 {
		return nil, ErrBaseURLInvalid
	}

	return &Client{httpClient: httpClient, baseURL: parsedBaseURL}, nil
}

// ListReleases enumerates every release of the repository, following pagination until a short page.
func (client *Client) ListReleases(executionContext context.Context, repository string) ([]Release, error) {
	releasesURL, validationError := client.releasesURL(repository)
	if validationError != nil {
		return nil, validationError
	}

	releases := make([]Release, 0)
	for pageNumber := 1; ; pageNumber++ {
		if pageNumber > maximumReleasePagesConstant {
			return nil, OperationError{Operation: OperationListReleases, Cause: ErrReleasePageLimitExceeded}
		}

		pageURL := *releasesURL
		query := pageURL.Query()
		query.Set(perPageQueryParameterConstant, strconv.Itoa(releasesPerPageConstant))
		query.Set(pageQueryParameterConstant, strconv.Itoa(pageNumber))
		pageURL.RawQuery = query.Encode()

		request, requestError := client.newRequest(executionContext, http.MethodGet, pageURL.String(), nil)
		if requestError != nil {
			return nil, OperationError{Operation: OperationListReleases, Cause: requestError}
		}

		var page []Release
		if executionError := client.execute(request, OperationListReleases, &page); executionError != nil {
			return nil, executionError
		}
		releases = append(releases, page...)

		if len(page) < releasesPerPageConstant {
			return releases, nil
		}
	}
}

// CreateRelease publishes a release for the tag carried by the request.
func (client *Client) CreateRelease(executionContext context.Context, repository string, releaseRequest ReleaseRequest) (Release, error) {
	releasesURL, validationError := client.releasesURL(repository)
	if validationError != nil {
		return Release{}, validationError
	}
	if len(strings.TrimSpace(releaseRequest.TagName)) == 0 {
		return Release{}, InvalidInputError{FieldName: tagNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	payloadBytes, encodingError := json.Marshal(releaseRequest)
	if encodingError != nil {
		return Release{}, PayloadEncodingError{Operation: OperationCreateRelease, Cause: encodingError}
	}

	request, requestError := client.newRequest(executionContext, http.MethodPost, releasesURL.String(), bytes.NewReader(payloadBytes))
	if requestError != nil {
		return Release{}, OperationError{Operation: OperationCreateRelease, Cause: requestError}
	}
	request.Header.Set(contentTypeHeaderNameConstant, jsonContentTypeConstant)

	var release Release
	if executionError := client.execute(request, OperationCreateRelease, &release); executionError != nil {
		return Release{}, executionError
	}
	return release, nil
}

// UploadAsset streams the asset to the release upload URL. The URI template suffix of the URL is discarded.
func (client *Client) UploadAsset(executionContext context.Context, upload AssetUpload) (Asset, error) {
	if len(strings.TrimSpace(upload.Name)) == 0 {
		return Asset{}, InvalidInputError{FieldName: assetNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if upload.Size < 0 {
		return Asset{}, InvalidInputError{FieldName: assetSizeFieldNameConstant, Message: assetSizeNegativeMessageConstant}
	}

	uploadURL, uploadURLError := ExpandUploadURL(upload.UploadURL, upload.Name)
	if uploadURLError != nil {
		return Asset{}, uploadURLError
	}

	body := upload.Content
	if body == nil || upload.Size == 0 {
		body = http.NoBody
	}

	request, requestError := client.newRequest(executionContext, http.MethodPost, uploadURL, body)
	if requestError != nil {
		return Asset{}, OperationError{Operation: OperationUploadAsset, Cause: requestError}
	}
	request.ContentLength = upload.Size

	contentType := strings.TrimSpace(upload.ContentType)
	if len(contentType) == 0 {
		contentType = defaultAssetContentTypeConstant
	}
	request.Header.Set(contentTypeHeaderNameConstant, contentType)

	var asset Asset
	if executionError := client.execute(request, OperationUploadAsset, &asset); executionError != nil {
		return Asset{}, executionError
	}
	return asset, nil
}

// ExpandUploadURL removes the RFC 6570 suffix from a release upload_url and sets the asset name query.
func ExpandUploadURL(uploadURLTemplate string, assetName string) (string, error) {
	trimmedTemplate := strings.TrimSpace(uploadURLTemplate)
	if templateIndex := strings.Index(trimmedTemplate, uriTemplateOpeningConstant); templateIndex >= 0 {
		trimmedTemplate = trimmedTemplate[:templateIndex]
	}
	if len(trimmedTemplate) == 0 {
		return "", InvalidInputError{FieldName: uploadURLFieldNameConstant, Message: requiredValueMessageConstant}
	}

	parsedURL, parseError := url.Parse(trimmedTemplate)
	if parseError != nil {
		return "", InvalidInputError{FieldName: uploadURLFieldNameConstant, Message: parseError.Error()}
	}
	query := parsedURL.Query()
	query.Set(nameQueryParameterConstant, assetName)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func (client *Client) releasesURL(repository string) (*url.URL, error) {
	owner, name, repositoryError := splitRepository(repository)
	if repositoryError != nil {
		return nil, repositoryError
	}
	return client.baseURL.JoinPath(repositoriesPathSegmentConstant, owner, name, releasesPathSegmentConstant), nil
}

func splitRepository(repository string) (string, string, error) {
	trimmedRepository := strings.TrimSpace(repository)
	if len(trimmedRepository) == 0 {
		return "", "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	owner, name, found := strings.Cut(trimmedRepository, repositorySeparatorConstant)
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if !found || len(owner) == 0 || len(name) == 0 || strings.Contains(name, repositorySeparatorConstant) {
		return "", "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: repositoryFormatMessageConstant}
	}
	return owner, name, nil
}

func (client *Client) newRequest(executionContext context.Context, method string, target string, body io.Reader) (*http.Request, error) {
	request, requestError := http.NewRequestWithContext(executionContext, method, target, body)
	if requestError != nil {
		return nil, requestError
	}
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)
	return request, nil
}

func (client *Client) execute(request *http.Request, operation OperationName, target any) error {
	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return OperationError{Operation: operation, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimitBytesConstant))
		return ResponseStatusError{
			Operation:  operation,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}

	if decodingError := json.NewDecoder(response.Body).Decode(target); decodingError != nil {
		return ResponseDecodingError{Operation: operation, Cause: decodingError}
	}
	return nil
}
