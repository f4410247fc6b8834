// Package bucket enumerates application packages stored in a public
// S3-compatible bucket.
//
// HTTPLister fetches and decodes the anonymous XML object listing, S3Lister
// reaches the same objects through the S3 API with minio-go. Both normalize
// each listed object into a VersionRecord and apply the configured Ordering.
package bucket
