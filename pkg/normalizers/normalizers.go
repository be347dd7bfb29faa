// Package normalizers provides field normalization functions for match scoring.
// Normalized values are used only for comparison, never stored.
package normalizers

import (
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
	Register("trim", Trim)
	Register("nname", Name)
	Register("nkeywords", NameKeywords)
	Register("naddress", Address)
	Register("nphone", Phone)
	Register("remove_punctuation", RemovePunctuation)
	Register("digits_only", DigitsOnly)
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

// nameStopWords are generic terms that differ between sources without
// distinguishing restaurants ("Jade Garden" vs "Jade Garden Chinese Buffet").
// Removed only for the key-words comparison variant, never from the full name.
var nameStopWords = map[string]bool{
	"restaurant": true,
	"buffet":     true,
	"chinese":    true,
	"cafe":       true,
	"grill":      true,
	"the":        true,
	"a":          true,
	"an":         true,
	"and":        true,
	"or":         true,
	"of":         true,
}

// streetSuffixes vary in presence and abbreviation style across sources, so
// both the full and abbreviated forms are stripped before comparison.
var streetSuffixes = map[string]bool{
	"street":    true,
	"st":        true,
	"avenue":    true,
	"ave":       true,
	"road":      true,
	"rd":        true,
	"boulevard": true,
	"blvd":      true,
	"drive":     true,
	"dr":        true,
	"lane":      true,
	"ln":        true,
	"way":       true,
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Name normalizes a restaurant name for matching:
// lowercase, punctuation stripped, whitespace collapsed.
func Name(s string) string {
	return collapseToWords(strings.ToLower(s))
}

// NameKeywords normalizes a restaurant name and removes the stop-word list.
// Used as a secondary comparison signal alongside the full-name comparison.
func NameKeywords(s string) string {
	words := strings.Fields(Name(s))
	kept := words[:0]
	for _, w := range words {
		if !nameStopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Address normalizes an address for matching: lowercase, punctuation
// stripped, whitespace collapsed, street-type suffixes removed.
func Address(s string) string {
	words := strings.Fields(collapseToWords(strings.ToLower(s)))
	kept := words[:0]
	for _, w := range words {
		if !streetSuffixes[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Phone strips all non-digit characters from a phone number. Length
// validation is the scorer's concern, not the normalizer's.
func Phone(s string) string {
	return DigitsOnly(s)
}

// RemovePunctuation removes all punctuation and symbol characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// collapseToWords replaces punctuation and symbols with spaces and collapses
// runs of whitespace to a single space. Replacing (rather than deleting)
// keeps "jade-garden" comparable to "jade garden".
func collapseToWords(s string) string {
	var result strings.Builder
	prevSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			result.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(result.String())
}
