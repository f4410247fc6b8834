package mirror

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/popper/internal/bucket"
	"github.com/temirov/popper/internal/fetcher"
	"github.com/temirov/popper/internal/githubapi"
	"github.com/temirov/popper/internal/releases"
	"github.com/temirov/popper/internal/utils"
)

const (
	listerCreationErrorTemplateConstant    = "unable to configure bucket lister: %w"
	apiClientCreationErrorTemplateConstant = "unable to configure github client: %w"
	fetcherCreationErrorTemplateConstant   = "unable to configure fetcher: %w"
	publisherCreationErrorTemplate         = "unable to configure publisher: %w"
)

// RunExecutor executes a mirror run.
type RunExecutor interface {
	Run(executionContext context.Context, options RunOptions) (Summary, error)
}

// ServiceResolver creates run executors for the command.
type ServiceResolver interface {
	Resolve(logger *zap.Logger, configuration Configuration, token string) (RunExecutor, error)
}

// DefaultServiceResolver builds the mirror service from the bucket, GitHub and filesystem collaborators.
type DefaultServiceResolver struct {
	// HTTPClient serves bucket listing and downloads. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// APITransport is the base transport beneath the bearer token transport. Defaults to http.DefaultTransport.
	APITransport    http.RoundTripper
	ContextAccessor utils.CommandContextAccessor
}

// Resolve wires a Service for the sanitized configuration and resolved token.
func (resolver *DefaultServiceResolver) Resolve(logger *zap.Logger, configuration Configuration, token string) (RunExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resolver.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	lister, listerError := resolver.resolveLister(logger, httpClient, configuration)
	if listerError != nil {
		return nil, fmt.Errorf(listerCreationErrorTemplateConstant, listerError)
	}

	apiClient, apiClientError := githubapi.NewClient(
		githubapi.NewAuthenticatedHTTPClient(token, resolver.APITransport),
		githubapi.ServiceConfiguration{BaseURL: configuration.APIBaseURL},
	)
	if apiClientError != nil {
		return nil, fmt.Errorf(apiClientCreationErrorTemplateConstant, apiClientError)
	}

	assetFetcher, fetcherError := fetcher.NewFetcher(logger, httpClient, fetcher.Configuration{
		DownloadDirectory: configuration.DownloadDirectory,
		ProductName:       configuration.ProductName,
		FileExtension:     configuration.KeySuffix,
		SkipIfExists:      configuration.SkipIfExists,
	})
	if fetcherError != nil {
		return nil, fmt.Errorf(fetcherCreationErrorTemplateConstant, fetcherError)
	}

	publisher, publisherError := releases.NewPublisher(
		releases.PublisherDependencies{Client: apiClient, Logger: logger},
		releases.Configuration{
			Repository:    configuration.Repository,
			ProductName:   configuration.ProductName,
			TagPrefix:     configuration.TagPrefix,
			FileExtension: configuration.KeySuffix,
			ContentType:   configuration.ContentType,
		},
	)
	if publisherError != nil {
		return nil, fmt.Errorf(publisherCreationErrorTemplate, publisherError)
	}

	service, serviceError := NewService(ServiceDependencies{
		Logger:          logger,
		Lister:          lister,
		Releases:        apiClient,
		Fetcher:         assetFetcher,
		Publisher:       publisher,
		ContextAccessor: resolver.ContextAccessor,
	})
	if serviceError != nil {
		return nil, serviceError
	}
	return service, nil
}

func (resolver *DefaultServiceResolver) resolveLister(logger *zap.Logger, httpClient *http.Client, configuration Configuration) (VersionLister, error) {
	ordering, orderingError := bucket.ParseOrdering(configuration.Ordering)
	if orderingError != nil {
		return nil, orderingError
	}

	listerConfiguration := bucket.ListerConfiguration{
		BaseURL:  configuration.BucketURL,
		Naming:   bucket.NamingConfiguration{KeyPrefix: configuration.KeyPrefix, KeySuffix: configuration.KeySuffix},
		Ordering: ordering,
	}

	if BucketListingSource(configuration.ListingSource) == BucketListingSourceS3 {
		s3Lister, s3ListerError := bucket.NewS3Lister(logger, bucket.S3Configuration{
			Endpoint: configuration.S3Endpoint,
			Bucket:   configuration.S3Bucket,
			Region:   configuration.S3Region,
			UseSSL:   configuration.S3UseSSL,
		}, listerConfiguration)
		if s3ListerError != nil {
			return nil, s3ListerError
		}
		return s3Lister, nil
	}

	httpLister, httpListerError := bucket.NewHTTPLister(logger, httpClient, listerConfiguration)
	if httpListerError != nil {
		return nil, httpListerError
	}
	return httpLister, nil
}
