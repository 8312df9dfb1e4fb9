package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeCodeSet(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		code     string
		expected string
		changed  bool
	}{
		{"adds to empty column", "", "b123", "B123", true},
		{"keeps sorted order", "B123,P100", "H001", "B123,H001,P100", true},
		{"duplicate is a no-op", "B123,P100", "P100", "B123,P100", false},
		{"duplicate differs only in case", "B123", " b123 ", "B123", false},
		{"blank code is a no-op", "B123", "   ", "B123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, changed := MergeCodeSet(tt.column, tt.code)
			assert.Equal(t, tt.expected, column)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestSplitCodeSet(t *testing.T) {
	assert.Nil(t, SplitCodeSet("  "))
	assert.Equal(t, []string{"B123", "P100"}, SplitCodeSet(" b123 , P100 ,"))
}

func TestAmcMaster_HasCode(t *testing.T) {
	m := &AmcMaster{CamsAmcCodes: "B123", NseAmcCodes: "N7,N8"}
	assert.True(t, m.HasCode("b123"))
	assert.True(t, m.HasCode(" N8 "))
	assert.False(t, m.HasCode("X1"))
	assert.False(t, m.HasCode(""))
}

func TestParseSource(t *testing.T) {
	src, ok := ParseSource(" CAMS ")
	assert.True(t, ok)
	assert.Equal(t, SourceCams, src)

	_, ok = ParseSource("registrar")
	assert.False(t, ok)
}
