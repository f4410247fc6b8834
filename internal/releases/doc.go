// Package releases turns downloaded package versions into GitHub releases.
//
// Publisher creates one release per version with a localized body describing
// the version, last modification time and size, then attaches the downloaded
// file as the release asset. A failed upload leaves the created release in
// place and is reported through UploadError so the operator can attach the
// asset manually.
package releases
