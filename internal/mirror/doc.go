// Package mirror publishes package versions found in an object storage bucket
// as GitHub releases.
//
// Service lists the bucket, subtracts the versions already released, then
// downloads, publishes and uploads every remaining version one at a time.
// Listing and authentication failures abort the run; failures of a single
// version are recorded in the Summary and the batch continues. CommandBuilder
// exposes the workflow as the mirror cobra command.
package mirror
