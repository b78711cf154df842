// Package sizeclass canonicalizes free-text company size values onto a
// fixed, ordered domain via an explicit rule table.
package sizeclass

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is returned when a rule table cannot be constructed.
var ErrInvalidRule = errors.New("invalid size rule")

// Category is a canonical company-size bucket.
type Category string

// The fixed domain. Raw values arrive as inconsistent free text
// (spreadsheet tools substitute month abbreviations like "Jan" and
// "Nov" for the range labels) and must converge on these values.
const (
	Size1To10   Category = "1-10"
	Size11To50  Category = "11-50"
	Size51To100 Category = "51-100"
	Size100Plus Category = "100+"
	// SizeUnknown is the explicit bucket for unmatched raw text. It is a
	// distinct, queryable category, never an error and never a dropped row.
	SizeUnknown Category = "unknown"
)

// Order returns the sort rank of the category. Known sizes keep their
// natural ordering 1-10 < 11-50 < 51-100 < 100+; unknown sorts last.
func (c Category) Order() int {
	switch c {
	case Size1To10:
		return 0
	case Size11To50:
		return 1
	case Size51To100:
		return 2
	case Size100Plus:
		return 3
	default:
		return 4
	}
}

// Categories returns the full domain in display order, unknown last.
func Categories() []Category {
	return []Category{Size1To10, Size11To50, Size51To100, Size100Plus, SizeUnknown}
}

// ParseCategory reports whether s names a category in the domain.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return SizeUnknown, false
}

// Rule maps a substring pattern to a canonical category.
type Rule struct {
	Pattern  string   `yaml:"pattern"`
	Category Category `yaml:"category"`
}

// Matches returns true if the normalized raw value contains the pattern.
func (r Rule) Matches(normalized string) bool {
	return strings.Contains(normalized, r.Pattern)
}

// Table is an ordered list of rules. Rules are tested in declaration
// order and the first match wins, so broad patterns must come after
// narrow ones when they could collide.
type Table struct {
	rules []Rule
}

// NewTable creates a rule table from the given rules.
// Patterns are lower-cased and trimmed so matching is case-insensitive.
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: at least one rule must be configured", ErrInvalidRule)
	}

	seen := make(map[string]bool, len(rules))
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		pattern := strings.ToLower(strings.TrimSpace(r.Pattern))
		if pattern == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty pattern", ErrInvalidRule, i)
		}
		if seen[pattern] {
			return nil, fmt.Errorf("%w: duplicate pattern %q", ErrInvalidRule, pattern)
		}
		seen[pattern] = true

		if _, ok := ParseCategory(string(r.Category)); !ok || r.Category == SizeUnknown {
			return nil, fmt.Errorf("%w: pattern %q targets unknown category %q", ErrInvalidRule, pattern, r.Category)
		}
		normalized[i] = Rule{Pattern: pattern, Category: r.Category}
	}

	return &Table{rules: normalized}, nil
}

// DefaultTable returns the standard rule set. The month-abbreviation
// rules come first: a value like "Jan" must resolve before any range
// pattern gets a chance to match.
func DefaultTable() *Table {
	return &Table{rules: []Rule{
		{Pattern: "jan", Category: Size1To10},
		{Pattern: "nov", Category: Size11To50},
		{Pattern: "11-50", Category: Size11To50},
		{Pattern: "51-100", Category: Size51To100},
		{Pattern: "100+", Category: Size100Plus},
	}}
}

// Canonicalize maps a raw company-size value onto the canonical domain.
// Unmatched text yields SizeUnknown, never an error.
func (t *Table) Canonicalize(raw string) Category {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return SizeUnknown
	}
	for _, r := range t.rules {
		if r.Matches(normalized) {
			return r.Category
		}
	}
	return SizeUnknown
}

// Rules returns the ordered rule set.
func (t *Table) Rules() []Rule {
	return t.rules
}
