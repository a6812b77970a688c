package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// maxSlugLen bounds derived ids so they stay usable as store keys.
	maxSlugLen = 40
	// maxSuffixAttempts caps collision disambiguation. Beyond the cap a
	// timestamp suffix guarantees termination; that path is effectively
	// unreachable with real data.
	maxSuffixAttempts = 1000
)

// IDGenerator assigns deterministic customer ids derived from names.
// The same sequence of calls always yields the same ids, so re-extracting a
// file reproduces its ledger byte for byte.
type IDGenerator struct {
	assigned map[string]struct{}
}

// NewIDGenerator creates an empty generator for one extraction run.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{assigned: make(map[string]struct{})}
}

// Claim reserves an id supplied by the source data so derived ids can never
// collide with it.
func (g *IDGenerator) Claim(id string) {
	g.assigned[id] = struct{}{}
}

// Derive returns a stable id for the customer name: lower-cased, with runs of
// non-alphanumeric characters collapsed to single underscores, truncated, and
// disambiguated with a numeric suffix on collision. Two rows named
// "Acme Corp" yield acme_corp then acme_corp_1, in row order, on every run.
func (g *IDGenerator) Derive(name string) string {
	base := slugify(name)
	if base == "" {
		base = "customer"
	}

	candidate := base
	for i := 1; i <= maxSuffixAttempts; i++ {
		if _, taken := g.assigned[candidate]; !taken {
			g.assigned[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}

	// Pathological collision volume; give up on pretty ids.
	candidate = fmt.Sprintf("%s_%d", base, time.Now().UnixNano())
	g.assigned[candidate] = struct{}{}
	return candidate
}

// slugify lowercases the name, folds accented characters to their base form,
// and collapses everything non-alphanumeric into single underscores.
func slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		normalized = name
	}

	var b strings.Builder
	lastUnderscore := true // trims leading separators
	for _, r := range strings.ToLower(normalized) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	slug := strings.TrimRight(b.String(), "_")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "_")
	}
	return slug
}
