// ABOUTME: Counterparty to client name matching
// ABOUTME: Suggests which client an unmatched Harvest counterparty belongs to
package billing

import (
	"strings"
	"unicode"

	"github.com/harperreed/agencycrm/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are dropped from the end of names before comparison.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "company": true, "gmbh": true,
	"plc": true, "lp": true, "llp": true,
}

type ClientMatcher struct {
	byName map[string]*models.Client
	// ambiguous names map to more than one client and never match
	ambiguous map[string]bool
}

// NewClientMatcher creates a matcher from existing clients.
func NewClientMatcher(clients []*models.Client) *ClientMatcher {
	m := &ClientMatcher{
		byName:    make(map[string]*models.Client),
		ambiguous: make(map[string]bool),
	}
	for _, c := range clients {
		m.AddClient(c)
	}
	return m
}

// AddClient adds a client to the matcher.
func (m *ClientMatcher) AddClient(c *models.Client) {
	key := normalizeName(c.Name)
	if key == "" || m.ambiguous[key] {
		return
	}
	if existing, ok := m.byName[key]; ok && existing.ID != c.ID {
		delete(m.byName, key)
		m.ambiguous[key] = true
		return
	}
	m.byName[key] = c
}

// FindMatch looks for the single client whose name matches the counterparty's.
func (m *ClientMatcher) FindMatch(counterparty string) (*models.Client, bool) {
	key := normalizeName(counterparty)
	if key == "" {
		return nil, false
	}
	c, found := m.byName[key]
	return c, found
}

// normalizeName folds case and accents, drops punctuation and trailing legal
// suffixes, and collapses whitespace.
func normalizeName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) > 1 && words[0] == "the" {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
