// Package normalizers provides string normalization functions for AMC name
// and code matching
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("amc_name", NormalizeAmcName)
	Register("amc_code", NormalizeAmcCode)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("alphanumeric", Alphanumeric)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

var (
	// Zero-or-more spaces so the common feed spelling "MutualFund" strips too.
	mutualFundRe = regexp.MustCompile(`(?i)\bmutual\s*fund\b`)
	allowedRe    = regexp.MustCompile(`[^A-Za-z0-9 &]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// NormalizeAmcName produces the canonical matching form of an AMC name:
// drop the words "mutual fund", keep only letters, digits, spaces and '&',
// collapse whitespace and title-case the result. All five sources pass
// through this before any name comparison, so "HDFC Mutual Fund" and
// "hdfc MUTUAL FUND." both normalize to "Hdfc".
func NormalizeAmcName(s string) string {
	s = mutualFundRe.ReplaceAllString(s, " ")
	s = allowedRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return titleCase(s)
}

// NormalizeAmcCode normalizes a source AMC code (uppercase, trim)
func NormalizeAmcCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// titleCase uppercases every letter that starts an alphabetic run and
// lowercases the rest, matching how master short names are stored. An
// apostrophe or '&' starts a new run, so "l&t" becomes "L&T".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// CollapseWhitespace collapses runs of whitespace into single spaces
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
