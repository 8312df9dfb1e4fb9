package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAmcName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"removes mutual fund", "HDFC Mutual Fund", "Hdfc"},
		{"case insensitive removal", "hdfc MUTUAL FUND", "Hdfc"},
		{"mutual fund mid-name", "SBI Mutual Fund Trustee", "Sbi Trustee"},
		{"keeps ampersand", "L&T Mutual Fund", "L&T"},
		{"strips punctuation", "Aditya Birla Sun Life Mutual Fund.", "Aditya Birla Sun Life"},
		{"collapses whitespace", "  ICICI   Prudential  ", "Icici Prudential"},
		{"keeps digits", "360 ONE Mutual Fund", "360 One"},
		{"removes mutualfund without space", "HDFC MutualFund", "Hdfc"},
		{"mutualfund glued to the name survives", "ABCMutualFund", "Abcmutualfund"},
		{"empty input", "", ""},
		{"only mutual fund", "Mutual Fund", ""},
		{"hyphen becomes space", "Bank of India-AXA", "Bank Of India Axa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAmcName(tt.input))
		})
	}
}

func TestNormalizeAmcCode(t *testing.T) {
	assert.Equal(t, "HDFC", NormalizeAmcCode("  hdfc "))
	assert.Equal(t, "B123", NormalizeAmcCode("b123"))
	assert.Equal(t, "", NormalizeAmcCode("   "))
}

func TestApplyChain(t *testing.T) {
	result := ApplyChain("  UTI Mutual Fund  ", "trim", "amc_name")
	assert.Equal(t, "Uti", result)
}

func TestApply_UnknownNormalizerPassesThrough(t *testing.T) {
	assert.Equal(t, "value", Apply("value", "does_not_exist"))
}

func TestRegister(t *testing.T) {
	Register("reverse_test", func(s string) string {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes)
	})
	fn, ok := Get("reverse_test")
	assert.True(t, ok)
	assert.Equal(t, "cba", fn("abc"))
}
