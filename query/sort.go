// ABOUTME: Stable record ordering and window slicing
// ABOUTME: Nulls sort last, numbers compare numerically, text uses a locale collator
package query

import (
	"cmp"
	"slices"

	"github.com/harperreed/agencycrm/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortSpec selects the field and direction for ordering.
type SortSpec struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Sorter compares records for one SortSpec. It holds a collator and is not
// safe for concurrent use.
type Sorter struct {
	spec     SortSpec
	collator *collate.Collator
}

// NewSorter builds a Sorter using English collation rules.
func NewSorter(spec SortSpec) *Sorter {
	return &Sorter{
		spec:     spec,
		collator: collate.New(language.English),
	}
}

// Compare orders a before b (<0), after b (>0), or equal (0). Nil values
// sort last regardless of direction.
func (s *Sorter) Compare(a, b models.Record) int {
	av := a.Field(s.spec.Field)
	bv := b.Field(s.spec.Field)

	switch {
	case av == nil && bv == nil:
		return 0
	case av == nil:
		return 1
	case bv == nil:
		return -1
	}

	var c int
	an, aNum := number(av)
	bn, bNum := number(bv)
	if aNum && bNum {
		c = cmp.Compare(an, bn)
	} else {
		c = s.collator.CompareString(Stringify(av), Stringify(bv))
	}

	if s.spec.Desc {
		return -c
	}
	return c
}

// Sort orders records in place. The sort is stable.
func Sort[R models.Record](records []R, spec SortSpec) {
	if spec.Field == "" {
		return
	}
	s := NewSorter(spec)
	slices.SortStableFunc(records, func(a, b R) int {
		return s.Compare(a, b)
	})
}

// Page returns the window [offset, offset+limit) of records, clamped to
// bounds. A non-positive limit returns everything from offset.
func Page[R any](records []R, offset, limit int) []R {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end]
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
