// Package fetcher downloads package versions listed in the bucket into a local
// directory, verifying the received byte count against Content-Length.
package fetcher
