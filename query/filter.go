// ABOUTME: Exact-match filter predicates and filter-menu value extraction
// ABOUTME: All filters are ANDed; empty values leave a field unconstrained
package query

import (
	"sort"

	"github.com/harperreed/agencycrm/models"
)

// FilterSet maps a field name to the single selected value. An empty value
// leaves that field unconstrained.
type FilterSet map[string]string

// Active returns a copy holding only the constraining entries.
func (f FilterSet) Active() FilterSet {
	out := make(FilterSet, len(f))
	for k, v := range f {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// ApplyFilters reports whether r satisfies every non-empty filter. A nil
// field value only satisfies an empty filter.
func ApplyFilters(r models.Record, filters FilterSet) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		v := r.Field(field)
		if v == nil || Stringify(v) != want {
			return false
		}
	}
	return true
}

// UniqueValues returns the distinct non-empty values of field, sorted
// lexicographically, for populating filter menus.
func UniqueValues[R models.Record](records []R, field string) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		v := r.Field(field)
		if v == nil {
			continue
		}
		s := Stringify(v)
		if s == "" {
			continue
		}
		seen[s] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for s := range seen {
		values = append(values, s)
	}
	sort.Strings(values)
	return values
}
