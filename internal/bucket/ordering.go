package bucket

import (
	"fmt"
	"sort"
	"strings"

	"github.com/temirov/popper/internal/versions"
)

const (
	orderingAscendingValueConstant      = "ascending"
	orderingListingValueConstant        = "listing"
	orderingReverseListingValueConstant = "reverse_listing"
	unsupportedOrderingTemplateConstant = "unsupported ordering %q (expected ascending, listing, or reverse_listing)"
)

// Ordering selects how listed records are sequenced.
type Ordering string

// Supported orderings.
const (
	OrderingAscending      Ordering = Ordering(orderingAscendingValueConstant)
	OrderingListing        Ordering = Ordering(orderingListingValueConstant)
	OrderingReverseListing Ordering = Ordering(orderingReverseListingValueConstant)
)

// ParseOrdering normalizes a textual ordering; an empty value means ascending.
func ParseOrdering(orderingValue string) (Ordering, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(orderingValue))
	switch Ordering(normalizedValue) {
	case "", OrderingAscending:
		return OrderingAscending, nil
	case OrderingListing:
		return OrderingListing, nil
	case OrderingReverseListing:
		return OrderingReverseListing, nil
	default:
		return "", fmt.Errorf(unsupportedOrderingTemplateConstant, orderingValue)
	}
}

// ApplyOrdering returns a newly allocated slice of records sequenced according to ordering.
func ApplyOrdering(records []VersionRecord, ordering Ordering) []VersionRecord {
	ordered := make([]VersionRecord, len(records))
	copy(ordered, records)

	switch ordering {
	case OrderingListing:
	case OrderingReverseListing:
		for leftIndex, rightIndex := 0, len(ordered)-1; leftIndex < rightIndex; leftIndex, rightIndex = leftIndex+1, rightIndex-1 {
			ordered[leftIndex], ordered[rightIndex] = ordered[rightIndex], ordered[leftIndex]
		}
	default:
		sort.SliceStable(ordered, func(leftIndex int, rightIndex int) bool {
			comparison := versions.CompareComponents(ordered[leftIndex].Components, ordered[rightIndex].Components)
			if comparison != 0 {
				return comparison < 0
			}
			return ordered[leftIndex].Version < ordered[rightIndex].Version
		})
	}

	return ordered
}
