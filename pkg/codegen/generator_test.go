package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefix(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "Hdfc", "HDF"},
		{"skips non-letters", "360 One", "ONE"},
		{"skips ampersand", "L&T Finance", "LTF"},
		{"short name padded", "Ab", "ABX"},
		{"single letter", "I", "IXX"},
		{"empty name", "", "XXX"},
		{"spaces between letters", "S B I", "SBI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Prefix(tt.input))
		})
	}
}

func TestGenerator_Next(t *testing.T) {
	t.Run("counters increment per prefix", func(t *testing.T) {
		g := NewGenerator(nil)
		assert.Equal(t, "HDF001", g.Next("Hdfc"))
		assert.Equal(t, "HDB001", g.Next("Hdb Financial"))
		assert.Equal(t, "ICI001", g.Next("Icici Prudential"))
		assert.Equal(t, "HDF002", g.Next("Hdfc"))
	})

	t.Run("seeded with existing codes", func(t *testing.T) {
		g := NewGenerator([]string{"HDF001", "HDF007", "SBI002"})
		assert.Equal(t, "HDF008", g.Next("Hdfc"))
		assert.Equal(t, "SBI003", g.Next("Sbi"))
	})

	t.Run("malformed existing codes are ignored", func(t *testing.T) {
		g := NewGenerator([]string{"HDF", "HDFABC", ""})
		assert.Equal(t, "HDF001", g.Next("Hdfc"))
	})

	t.Run("observe advances the counter", func(t *testing.T) {
		g := NewGenerator(nil)
		g.Observe("ICI004")
		assert.Equal(t, "ICI005", g.Next("Icici Prudential"))
	})
}
