package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "JADE GARDEN", "jade garden"},
		{"strips punctuation to spaces", "Jade-Garden, Inc.", "jade garden inc"},
		{"collapses whitespace", "  Jade   Garden  ", "jade garden"},
		{"keeps digits", "Buffet 88", "buffet 88"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Name(tt.input))
		})
	}
}

func TestNameKeywords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"removes stop words", "Jade Garden Chinese Buffet", "jade garden"},
		{"removes articles", "The Golden Dragon", "golden dragon"},
		{"all stop words leaves empty", "The Buffet", ""},
		{"no stop words unchanged", "Golden Dragon", "golden dragon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NameKeywords(tt.input))
		})
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips suffix word", "123 Main Street", "123 main"},
		{"strips abbreviated suffix", "123 Main St.", "123 main"},
		{"equalizes suffix styles", "456 Oak Avenue", Address("456 Oak Ave")},
		{"keeps unit numbers", "789 Elm Rd Suite 4", "789 elm suite 4"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Address(tt.input))
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips formatting", "(312) 555-1234", "3125551234"},
		{"keeps country code digits", "+1 312 555 1234", "13125551234"},
		{"letters dropped", "312-555-CALL", "312555"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Phone(tt.input))
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Run("built-ins are registered", func(t *testing.T) {
		for _, name := range []string{"lowercase", "trim", "nname", "nkeywords", "naddress", "nphone", "remove_punctuation", "digits_only"} {
			_, ok := Get(name)
			assert.True(t, ok, "normalizer %s not registered", name)
		}
	})

	t.Run("unknown normalizer passes value through", func(t *testing.T) {
		assert.Equal(t, "UNCHANGED", Apply("UNCHANGED", "nope"))
	})

	t.Run("chain applies in order", func(t *testing.T) {
		assert.Equal(t, "jade garden", ApplyChain("  JADE GARDEN  ", "trim", "lowercase"))
	})
}
