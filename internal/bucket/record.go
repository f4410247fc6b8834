package bucket

import (
	"math"
	"strconv"
	"time"
)

const (
	assetNameSeparatorConstant      = "_"
	bytesPerMegabyteConstant        = 1024 * 1024
	lastModifiedDisplayLayout       = "02.01.06 15:04:05"
	megabytePrecisionFactorConstant = 10
)

// VersionRecord describes one package version discovered in the bucket.
type VersionRecord struct {
	Version      string
	Components   []int
	Key          string
	LastModified time.Time
	SizeBytes    int64
	DownloadURL  string
}

// VersionString returns the version identifier used for reconciliation.
func (record VersionRecord) VersionString() string {
	return record.Version
}

// SizeMegabytes converts the object size to megabytes rounded to one decimal place, ties to even.
func (record VersionRecord) SizeMegabytes() float64 {
	return math.RoundToEven(float64(record.SizeBytes)/bytesPerMegabyteConstant*megabytePrecisionFactorConstant) / megabytePrecisionFactorConstant
}

// FormattedSizeMegabytes renders SizeMegabytes with exactly one decimal digit.
func (record VersionRecord) FormattedSizeMegabytes() string {
	return strconv.FormatFloat(record.SizeMegabytes(), 'f', 1, 64)
}

// FormattedLastModified renders the modification timestamp as dd.mm.yy HH:MM:SS.
func (record VersionRecord) FormattedLastModified() string {
	return record.LastModified.Format(lastModifiedDisplayLayout)
}

// AssetFileName composes the deterministic local and attachment file name, for example Shopper_3.5.2.apk.
func (record VersionRecord) AssetFileName(productName string, extension string) string {
	return productName + assetNameSeparatorConstant + record.Version + extension
}
