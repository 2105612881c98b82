// Package filter decides which swept resources are eligible for an ownership
// record based on their tags.
package filter

import (
	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Filter holds include and exclude tag rules.
type Filter struct {
	includeTags map[string]string
	excludeTags map[string]string
}

// New creates a new Filter. Either map may be nil.
func New(includeTags, excludeTags map[string]string) *Filter {
	return &Filter{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Allow returns true if tags pass the filter. Every include tag must match;
// any matching exclude tag rejects.
func (f *Filter) Allow(tags []resource.Tag) bool {
	if f == nil || f.IsEmpty() {
		return true
	}

	set := make(map[string]string, len(tags))
	for _, t := range tags {
		if _, seen := set[t.Key]; !seen {
			set[t.Key] = t.Value
		}
	}

	for k, v := range f.includeTags {
		if got, ok := set[k]; !ok || got != v {
			return false
		}
	}

	for k, v := range f.excludeTags {
		if got, ok := set[k]; ok && got == v {
			return false
		}
	}

	return true
}

// IsEmpty returns true if no rules are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.includeTags) == 0 && len(f.excludeTags) == 0
}
