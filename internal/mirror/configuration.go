package mirror

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/popper/internal/bucket"
	pathutils "github.com/temirov/popper/internal/utils/path"
)

const (
	defaultBucketURLConstant          = "https://storage.yandexcloud.net/sbermarker-shopper-distribution/"
	defaultS3EndpointConstant         = "storage.yandexcloud.net"
	defaultS3BucketConstant           = "sbermarker-shopper-distribution"
	defaultRepositoryConstant         = "Katrovsky/ShopperPopper"
	defaultAPIBaseURLConstant         = "https://api.github.com"
	defaultTokenSourceConstant        = "env:GITHUB_TOKEN"
	defaultEnvironmentFileConstant    = ".env"
	defaultDownloadDirectoryConstant  = "."
	defaultProductNameConstant        = "Shopper"
	defaultKeyPrefixConstant          = "shopper-"
	defaultKeySuffixConstant          = ".apk"
	defaultTagPrefixConstant          = "v"
	defaultContentTypeConstant        = "application/vnd.android.package-archive"
	configurationKeySeparatorConstant = "."
	unsupportedListingSourceTemplate  = "unsupported listing source %q"
	unsupportedReportFormatTemplate   = "unsupported report format %q"
	negativeTimeoutTemplateConstant   = "timeout must not be negative: %s"
	bucketURLKeyConstant              = "bucket_url"
	listingSourceKeyConstant          = "listing_source"
	s3EndpointKeyConstant             = "s3_endpoint"
	s3BucketKeyConstant               = "s3_bucket"
	s3RegionKeyConstant               = "s3_region"
	s3UseSSLKeyConstant               = "s3_use_ssl"
	repositoryKeyConstant             = "repository"
	apiBaseURLKeyConstant             = "api_base_url"
	tokenSourceKeyConstant            = "token_source"
	environmentFileKeyConstant        = "env_file"
	orderingKeyConstant               = "ordering"
	skipIfExistsKeyConstant           = "skip_if_exists"
	downloadDirectoryKeyConstant      = "download_directory"
	productNameKeyConstant            = "product_name"
	keyPrefixKeyConstant              = "key_prefix"
	keySuffixKeyConstant              = "key_suffix"
	tagPrefixKeyConstant              = "tag_prefix"
	contentTypeKeyConstant            = "content_type"
	dryRunKeyConstant                 = "dry_run"
	timeoutKeyConstant                = "timeout"
	reportFormatKeyConstant           = "report_format"
	listingSourceHTTPValueConstant    = "http"
	listingSourceS3ValueConstant      = "s3"
	reportFormatTextValueConstant     = "text"
	reportFormatYAMLValueConstant     = "yaml"
)

var configurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// BucketListingSource selects how the bucket is enumerated.
type BucketListingSource string

// Supported listing sources.
const (
	BucketListingSourceHTTP BucketListingSource = listingSourceHTTPValueConstant
	BucketListingSourceS3   BucketListingSource = listingSourceS3ValueConstant
)

// ReportFormat selects how the run summary is printed.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatText ReportFormat = reportFormatTextValueConstant
	ReportFormatYAML ReportFormat = reportFormatYAMLValueConstant
)

// Configuration stores the persisted mirror settings.
type Configuration struct {
	BucketURL         string        `mapstructure:"bucket_url"`
	ListingSource     string        `mapstructure:"listing_source"`
	S3Endpoint        string        `mapstructure:"s3_endpoint"`
	S3Bucket          string        `mapstructure:"s3_bucket"`
	S3Region          string        `mapstructure:"s3_region"`
	S3UseSSL          bool          `mapstructure:"s3_use_ssl"`
	Repository        string        `mapstructure:"repository"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	TokenSource       string        `mapstructure:"token_source"`
	EnvironmentFile   string        `mapstructure:"env_file"`
	Ordering          string        `mapstructure:"ordering"`
	SkipIfExists      bool          `mapstructure:"skip_if_exists"`
	DownloadDirectory string        `mapstructure:"download_directory"`
	ProductName       string        `mapstructure:"product_name"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
	KeySuffix         string        `mapstructure:"key_suffix"`
	TagPrefix         string        `mapstructure:"tag_prefix"`
	ContentType       string        `mapstructure:"content_type"`
	DryRun            bool          `mapstructure:"dry_run"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ReportFormat      string        `mapstructure:"report_format"`
}

// DefaultConfiguration supplies baseline values for the mirror.
func DefaultConfiguration() Configuration {
	return Configuration{
		BucketURL:         defaultBucketURLConstant,
		ListingSource:     listingSourceHTTPValueConstant,
		S3Endpoint:        defaultS3EndpointConstant,
		S3Bucket:          defaultS3BucketConstant,
		S3UseSSL:          true,
		Repository:        defaultRepositoryConstant,
		APIBaseURL:        defaultAPIBaseURLConstant,
		TokenSource:       defaultTokenSourceConstant,
		EnvironmentFile:   defaultEnvironmentFileConstant,
		Ordering:          string(bucket.OrderingAscending),
		SkipIfExists:      true,
		DownloadDirectory: defaultDownloadDirectoryConstant,
		ProductName:       defaultProductNameConstant,
		KeyPrefix:         defaultKeyPrefixConstant,
		KeySuffix:         defaultKeySuffixConstant,
		TagPrefix:         defaultTagPrefixConstant,
		ContentType:       defaultContentTypeConstant,
		ReportFormat:      reportFormatTextValueConstant,
	}
}

// DefaultConfigurationValues flattens DefaultConfiguration into viper defaults below the prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	values := map[string]any{
		bucketURLKeyConstant:         defaults.BucketURL,
		listingSourceKeyConstant:     defaults.ListingSource,
		s3EndpointKeyConstant:        defaults.S3Endpoint,
		s3BucketKeyConstant:          defaults.S3Bucket,
		s3RegionKeyConstant:          defaults.S3Region,
		s3UseSSLKeyConstant:          defaults.S3UseSSL,
		repositoryKeyConstant:        defaults.Repository,
		apiBaseURLKeyConstant:        defaults.APIBaseURL,
		tokenSourceKeyConstant:       defaults.TokenSource,
		environmentFileKeyConstant:   defaults.EnvironmentFile,
		orderingKeyConstant:          defaults.Ordering,
		skipIfExistsKeyConstant:      defaults.SkipIfExists,
		downloadDirectoryKeyConstant: defaults.DownloadDirectory,
		productNameKeyConstant:       defaults.ProductName,
		keyPrefixKeyConstant:         defaults.KeyPrefix,
		keySuffixKeyConstant:         defaults.KeySuffix,
		tagPrefixKeyConstant:         defaults.TagPrefix,
		contentTypeKeyConstant:       defaults.ContentType,
		dryRunKeyConstant:            defaults.DryRun,
		timeoutKeyConstant:           defaults.Timeout,
		reportFormatKeyConstant:      defaults.ReportFormat,
	}

	trimmedPrefix := strings.TrimSpace(prefix)
	if len(trimmedPrefix) == 0 {
		return values
	}
	prefixed := make(map[string]any, len(values))
	for key, value := range values {
		prefixed[trimmedPrefix+configurationKeySeparatorConstant+key] = value
	}
	return prefixed
}

// Sanitize trims configured values, fills blanks from the defaults and expands home directory shortcuts.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.BucketURL = fallbackString(configuration.BucketURL, defaults.BucketURL)
	sanitized.ListingSource = strings.ToLower(fallbackString(configuration.ListingSource, defaults.ListingSource))
	sanitized.S3Endpoint = strings.TrimSpace(configuration.S3Endpoint)
	sanitized.S3Bucket = strings.TrimSpace(configuration.S3Bucket)
	sanitized.S3Region = strings.TrimSpace(configuration.S3Region)
	sanitized.Repository = strings.TrimSpace(configuration.Repository)
	sanitized.APIBaseURL = fallbackString(configuration.APIBaseURL, defaults.APIBaseURL)
	sanitized.TokenSource = strings.TrimSpace(configuration.TokenSource)
	sanitized.EnvironmentFile = configurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.EnvironmentFile))
	sanitized.Ordering = strings.ToLower(fallbackString(configuration.Ordering, defaults.Ordering))
	sanitized.DownloadDirectory = configurationHomeDirectoryExpander.Expand(fallbackString(configuration.DownloadDirectory, defaults.DownloadDirectory))
	sanitized.ProductName = fallbackString(configuration.ProductName, defaults.ProductName)
	sanitized.KeyPrefix = strings.TrimSpace(configuration.KeyPrefix)
	sanitized.KeySuffix = strings.TrimSpace(configuration.KeySuffix)
	sanitized.TagPrefix = strings.TrimSpace(configuration.TagPrefix)
	sanitized.ContentType = fallbackString(configuration.ContentType, defaults.ContentType)
	sanitized.ReportFormat = strings.ToLower(fallbackString(configuration.ReportFormat, defaults.ReportFormat))

	return sanitized
}

// Validate rejects values that cannot drive a run.
func (configuration Configuration) Validate() error {
	switch BucketListingSource(configuration.ListingSource) {
	case BucketListingSourceHTTP, BucketListingSourceS3:
	default:
		return fmt.Errorf(unsupportedListingSourceTemplate, configuration.ListingSource)
	}
	if _, orderingError := bucket.ParseOrdering(configuration.Ordering); orderingError != nil {
		return orderingError
	}
	if _, formatError := ParseReportFormat(configuration.ReportFormat); formatError != nil {
		return formatError
	}
	if configuration.Timeout < 0 {
		return fmt.Errorf(negativeTimeoutTemplateConstant, configuration.Timeout)
	}
	return nil
}

// ParseReportFormat normalizes textual report format values. Empty selects text.
func ParseReportFormat(value string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(value))) {
	case "", ReportFormatText:
		return ReportFormatText, nil
	case ReportFormatYAML:
		return ReportFormatYAML, nil
	default:
		return "", fmt.Errorf(unsupportedReportFormatTemplate, value)
	}
}

func fallbackString(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}
