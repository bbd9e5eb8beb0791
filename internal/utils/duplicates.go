package utils

import (
	"strings"
)

// DuplicateFilter drops names that were already seen, ignoring case.
// It is not safe for concurrent use.
type DuplicateFilter struct {
	seen map[string]bool
}

// NewDuplicateFilter creates an empty filter
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{seen: make(map[string]bool)}
}

// ShouldInclude checks if a name should be kept (not a duplicate)
// Returns true the first time a name is seen, false afterwards
func (f *DuplicateFilter) ShouldInclude(name string) bool {
	lower := strings.ToLower(name)
	if f.seen[lower] {
		return false
	}
	f.seen[lower] = true
	return true
}
