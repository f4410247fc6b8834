package versions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	componentSeparatorConstant            = "."
	emptyVersionErrorMessageConstant      = "version must be provided"
	invalidComponentErrorTemplateConstant = "version %q has non-numeric component %q"
)

// ErrEmptyVersion indicates an empty version string.
var ErrEmptyVersion = errors.New(emptyVersionErrorMessageConstant)

// Version is a parsed dot-separated numeric version such as 3.5.2.
type Version struct {
	raw        string
	components []int
}

// Parse converts a textual version into its numeric components.
func Parse(versionText string) (Version, error) {
	trimmedVersion := strings.TrimSpace(versionText)
	if len(trimmedVersion) == 0 {
		return Version{}, ErrEmptyVersion
	}

	parts := strings.Split(trimmedVersion, componentSeparatorConstant)
	components := make([]int, 0, len(parts))
	for _, part := range parts {
		if len(part) == 0 || strings.TrimLeft(part, "0123456789") != "" {
			return Version{}, fmt.Errorf(invalidComponentErrorTemplateConstant, trimmedVersion, part)
		}
		component, conversionError := strconv.Atoi(part)
		if conversionError != nil {
			return Version{}, fmt.Errorf(invalidComponentErrorTemplateConstant, trimmedVersion, part)
		}
		components = append(components, component)
	}

	return Version{raw: trimmedVersion, components: components}, nil
}

// String returns the version as it was parsed.
func (version Version) String() string {
	return version.raw
}

// Components returns a copy of the numeric components.
func (version Version) Components() []int {
	duplicated := make([]int, len(version.components))
	copy(duplicated, version.components)
	return duplicated
}

// Compare orders versions component-wise. A version that is a strict prefix of
// another sorts first; equal numeric components with different spellings
// (1.02 and 1.2) fall back to the textual form so the order stays total.
func Compare(left Version, right Version) int {
	if result := CompareComponents(left.components, right.components); result != 0 {
		return result
	}
	return strings.Compare(left.raw, right.raw)
}

// CompareComponents orders two numeric component slices.
func CompareComponents(left []int, right []int) int {
	for index := 0; index < len(left) && index < len(right); index++ {
		switch {
		case left[index] < right[index]:
			return -1
		case left[index] > right[index]:
			return 1
		}
	}
	switch {
	case len(left) < len(right):
		return -1
	case len(left) > len(right):
		return 1
	default:
		return 0
	}
}

// NormalizeTag strips a single leading tag prefix (for example "v") from a release tag.
func NormalizeTag(tagName string, tagPrefix string) string {
	trimmedTag := strings.TrimSpace(tagName)
	if len(tagPrefix) == 0 {
		return trimmedTag
	}
	if len(trimmedTag) > len(tagPrefix) && strings.EqualFold(trimmedTag[:len(tagPrefix)], tagPrefix) {
		return trimmedTag[len(tagPrefix):]
	}
	return trimmedTag
}

// TagName composes the release tag for a version.
func TagName(version string, tagPrefix string) string {
	return tagPrefix + version
}
