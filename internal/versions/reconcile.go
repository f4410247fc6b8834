package versions

// Versioned exposes the version identifier of a discovered artifact.
type Versioned interface {
	VersionString() string
}

// ReleaseSet holds version identifiers already published remotely.
type ReleaseSet struct {
	versions map[string]struct{}
}

// NewReleaseSet builds a ReleaseSet from release tag names, stripping tagPrefix from each tag.
func NewReleaseSet(tagNames []string, tagPrefix string) ReleaseSet {
	normalized := make(map[string]struct{}, len(tagNames))
	for _, tagName := range tagNames {
		version := NormalizeTag(tagName, tagPrefix)
		if len(version) == 0 {
			continue
		}
		normalized[version] = struct{}{}
	}
	return ReleaseSet{versions: normalized}
}

// Contains reports whether the version has already been published.
func (releaseSet ReleaseSet) Contains(version string) bool {
	_, exists := releaseSet.versions[version]
	return exists
}

// Len returns the number of published versions.
func (releaseSet ReleaseSet) Len() int {
	return len(releaseSet.versions)
}

// Reconcile returns the discovered items whose version is not in the published set.
// Input order is preserved and neither input is modified.
func Reconcile[Item Versioned](existing ReleaseSet, discovered []Item) []Item {
	pending := make([]Item, 0, len(discovered))
	for _, item := range discovered {
		if existing.Contains(item.VersionString()) {
			continue
		}
		pending = append(pending, item)
	}
	return pending
}
