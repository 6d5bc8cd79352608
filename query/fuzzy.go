// ABOUTME: Fuzzy text matching and record search for list and kanban views
// ABOUTME: Substring match first, ordered-subsequence fallback second
package query

import (
	"strconv"
	"strings"

	"github.com/harperreed/agencycrm/models"
)

// FuzzyMatch reports whether query matches text. An empty query always
// matches. Matching is case-insensitive: a substring hit wins outright,
// otherwise every query character must appear in text in order.
func FuzzyMatch(text, query string) bool {
	if query == "" {
		return true
	}
	if text == "" {
		return false
	}

	t := strings.ToLower(text)
	q := strings.ToLower(query)
	if strings.Contains(t, q) {
		return true
	}

	qr := []rune(q)
	i := 0
	for _, r := range t {
		if i < len(qr) && r == qr[i] {
			i++
		}
	}
	return i == len(qr)
}

// SearchRecord reports whether any of the named fields fuzzy-matches query.
// Nil fields never match.
func SearchRecord(r models.Record, query string, fields []string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		v := r.Field(f)
		if v == nil {
			continue
		}
		if FuzzyMatch(Stringify(v), query) {
			return true
		}
	}
	return false
}

// Stringify renders a field value the way it appears on the wire.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case interface{ String() string }:
		return val.String()
	}
	return ""
}
