package bucket

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	defaultS3RegionConstant               = "us-east-1"
	s3EndpointMissingErrorMessageConstant = "s3 endpoint must be provided"
	s3BucketMissingErrorMessageConstant   = "s3 bucket must be provided"
	s3ListingCompletedLogMessageConstant  = "s3 bucket listing completed"
	logFieldS3EndpointConstant            = "s3_endpoint"
	logFieldS3BucketConstant              = "s3_bucket"
)

var (
	// ErrS3EndpointMissing indicates an empty S3 endpoint.
	ErrS3EndpointMissing = errors.New(s3EndpointMissingErrorMessageConstant)

	// ErrS3BucketMissing indicates an empty S3 bucket name.
	ErrS3BucketMissing = errors.New(s3BucketMissingErrorMessageConstant)
)

// S3Configuration locates the bucket on an S3-compatible API endpoint.
type S3Configuration struct {
	Endpoint string
	Bucket   string
	Region   string
	UseSSL   bool
}

// S3Lister enumerates bucket objects through the S3 API using anonymous credentials.
type S3Lister struct {
	logger   *zap.Logger
	client   *minio.Client
	bucket   string
	endpoint string
	baseURL  *url.URL
	naming   NamingConfiguration
	ordering Ordering
}

// NewS3Lister constructs an S3Lister. Download URLs are still composed from the configured base URL.
func NewS3Lister(logger *zap.Logger, s3Configuration S3Configuration, configuration ListerConfiguration) (*S3Lister, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := strings.TrimSpace(s3Configuration.Endpoint)
	if len(endpoint) == 0 {
		return nil, ErrS3EndpointMissing
	}
	bucketName := strings.TrimSpace(s3Configuration.Bucket)
	if len(bucketName) == 0 {
		return nil, ErrS3BucketMissing
	}
	region := strings.TrimSpace(s3Configuration.Region)
	if len(region) == 0 {
		region = defaultS3RegionConstant
	}

	baseURL, baseURLError := ParseBaseURL(configuration.BaseURL)
	if baseURLError != nil {
		return nil, baseURLError
	}

	client, clientError := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4("", "", ""),
		Secure:       s3Configuration.UseSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if clientError != nil {
		return nil, clientError
	}

	return &S3Lister{
		logger:   logger,
		client:   client,
		bucket:   bucketName,
		endpoint: endpoint,
		baseURL:  baseURL,
		naming:   configuration.Naming,
		ordering: configuration.Ordering,
	}, nil
}

// List enumerates every object in the bucket and orders the resulting records.
func (lister *S3Lister) List(listingContext context.Context) ([]VersionRecord, error) {
	normalizer := newRecordNormalizer(lister.baseURL, lister.naming, lister.logger)
	bucketURL := lister.baseURL.String()

	cancellableContext, cancel := context.WithCancel(listingContext)
	defer cancel()

	records := make([]VersionRecord, 0)
	objects := lister.client.ListObjects(cancellableContext, lister.bucket, minio.ListObjectsOptions{Recursive: true, UseV1: true})
	for object := range objects {
		if object.Err != nil {
			return nil, ListingError{BucketURL: bucketURL, Cause: object.Err}
		}
		record, isPackage, normalizeError := normalizer.normalize(object.Key, object.LastModified, object.Size)
		if normalizeError != nil {
			return nil, ListingError{BucketURL: bucketURL, Cause: normalizeError}
		}
		if isPackage {
			records = append(records, record)
		}
	}

	lister.logger.Info(
		s3ListingCompletedLogMessageConstant,
		zap.String(logFieldS3EndpointConstant, lister.endpoint),
		zap.String(logFieldS3BucketConstant, lister.bucket),
		zap.Int(logFieldRecordCountConstant, len(records)),
	)

	return ApplyOrdering(records, lister.ordering), nil
}
