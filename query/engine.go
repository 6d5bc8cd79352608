// ABOUTME: Query pipeline shared by every table and kanban view
// ABOUTME: Runs search, filter, sort, then enforces the hard record cap
package query

import (
	"fmt"

	"github.com/harperreed/agencycrm/models"
)

// RecordCap is the most records any view renders.
const RecordCap = 10000

// Query describes one view's search, filter, and sort state.
type Query struct {
	Search       string
	SearchFields []string
	Filters      FilterSet
	Sort         *SortSpec
	// Cap overrides RecordCap when positive.
	Cap int
}

// Result is the capped output of Run.
type Result[R models.Record] struct {
	Records      []R
	TotalMatched int
	Displayed    int
	Truncated    bool
}

// Run filters records by q, orders the full matched set, then caps it. The
// input slice is never reordered.
func Run[R models.Record](records []R, q Query) Result[R] {
	limit := q.Cap
	if limit <= 0 {
		limit = RecordCap
	}

	matched := make([]R, 0, len(records))
	for _, r := range records {
		if !SearchRecord(r, q.Search, q.SearchFields) {
			continue
		}
		if !ApplyFilters(r, q.Filters) {
			continue
		}
		matched = append(matched, r)
	}

	if q.Sort != nil {
		Sort(matched, *q.Sort)
	}

	res := Result[R]{TotalMatched: len(matched)}
	if len(matched) > limit {
		res.Records = matched[:limit]
		res.Truncated = true
	} else {
		res.Records = matched
	}
	res.Displayed = len(res.Records)
	return res
}

// Summary describes the displayed versus matched counts for a status line.
func (r Result[R]) Summary() string {
	if r.Truncated {
		return fmt.Sprintf("Showing %d of %d records (display capped at %d; refine your search)", r.Displayed, r.TotalMatched, r.Displayed)
	}
	return fmt.Sprintf("Showing %d of %d records", r.Displayed, r.TotalMatched)
}
