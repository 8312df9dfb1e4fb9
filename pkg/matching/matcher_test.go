package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/aster/pkg/models"
)

func testMasters() []models.AmcMaster {
	return []models.AmcMaster{
		{
			AmcID:        "HDF001",
			AmcCode:      "HDF001",
			AmcShortName: "Hdfc",
			AmcFullName:  "Hdfc Asset Management Company Limited",
			CamsAmcCodes: "H",
			BseAmcCodes:  "HDFCMF",
		},
		{
			AmcID:        "ICI001",
			AmcCode:      "ICI001",
			AmcShortName: "Icici Prudential",
			AmcFullName:  "Icici Prudential Asset Management Company Limited",
			KfinAmcCodes: "178",
		},
		{
			AmcID:        "SBI001",
			AmcCode:      "SBI001",
			AmcShortName: "Sbi",
			AmcFullName:  "Sbi Funds Management Limited",
			CamsAmcCodes: "L",
			NseAmcCodes:  "SBIMF",
		},
	}
}

func TestMatcher_CodeExact(t *testing.T) {
	m := NewMatcher(testMasters())

	t.Run("matches source code column", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceCams, AmcCode: "H", AmcName: "something else"})
		assert.Equal(t, models.MatchCodeExact, info.MatchType)
		assert.Equal(t, "HDF001", info.AmcID)
		assert.Equal(t, 1.0, info.Confidence)
	})

	t.Run("code is case insensitive", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceBse, AmcCode: "hdfcmf"})
		assert.Equal(t, models.MatchCodeExact, info.MatchType)
		assert.Equal(t, "HDF001", info.AmcID)
	})

	t.Run("code registered under another source still wins", func(t *testing.T) {
		// The name alone would exact-match ICI001; the known code must beat it.
		info := m.Match(models.RawAmcReference{Source: models.SourceKfin, AmcCode: "HDFCMF", AmcName: "Icici Prudential"})
		assert.Equal(t, models.MatchCodeExact, info.MatchType)
		assert.Equal(t, "HDF001", info.AmcID)
	})

	t.Run("unknown code falls through to name tiers", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceKfin, AmcCode: "ZZZ9", AmcName: "Icici Prudential"})
		assert.Equal(t, models.MatchNameExact, info.MatchType)
		assert.Equal(t, "ICI001", info.AmcID)
	})
}

func TestMatcher_NameExact(t *testing.T) {
	m := NewMatcher(testMasters())

	t.Run("normalized short name", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceAmfi, AmcName: "ICICI Prudential Mutual Fund"})
		assert.Equal(t, models.MatchNameExact, info.MatchType)
		assert.Equal(t, "ICI001", info.AmcID)
		assert.Equal(t, 0.95, info.Confidence)
	})

	t.Run("full name also matches", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceAmfi, AmcName: "SBI Funds Management Limited"})
		assert.Equal(t, models.MatchNameExact, info.MatchType)
		assert.Equal(t, "SBI001", info.AmcID)
	})
}

func TestMatcher_NamePartial(t *testing.T) {
	m := NewMatcher(testMasters())

	t.Run("short name sharing first token", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceNse, AmcName: "HDFC AMC"})
		assert.Equal(t, models.MatchNamePartial, info.MatchType)
		assert.Equal(t, "HDF001", info.AmcID)
		assert.Equal(t, 0.85, info.Confidence)
	})

	t.Run("long names skip the partial tier", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{
			Source:  models.SourceNse,
			AmcName: "Hdfc Completely Different Trustee Services Company",
		})
		assert.NotEqual(t, models.MatchNamePartial, info.MatchType)
	})
}

func TestMatcher_NameFuzzy(t *testing.T) {
	m := NewMatcher(testMasters())

	t.Run("typo resolves via trigram", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{
			Source:  models.SourceAmfi,
			AmcName: "ICICI Prudentail Asset Managment Company Ltd",
		})
		assert.Equal(t, "ICI001", info.AmcID)
		switch info.MatchType {
		case models.MatchNameFuzzyHigh, models.MatchNameFuzzyMedium, models.MatchNameFuzzyLow:
		default:
			t.Fatalf("expected a fuzzy match, got %s", info.MatchType)
		}
		assert.GreaterOrEqual(t, info.Confidence, 0.5)
	})

	t.Run("unrelated name is no match", func(t *testing.T) {
		info := m.Match(models.RawAmcReference{Source: models.SourceAmfi, AmcName: "Quantum Leap Ventures Private Equity"})
		assert.Equal(t, models.MatchNone, info.MatchType)
		assert.Empty(t, info.AmcID)
	})
}

func TestMatcher_EmptyInput(t *testing.T) {
	m := NewMatcher(testMasters())
	info := m.Match(models.RawAmcReference{Source: models.SourceCams, AmcCode: "  ", AmcName: ""})
	assert.Equal(t, models.MatchEmptyInput, info.MatchType)
	assert.False(t, info.Matched())
}

func TestScorer_Trigram(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Trigram("hdfc", "hdfc"))
	assert.Equal(t, 0.0, s.Trigram("", "hdfc"))
	assert.Equal(t, 0.0, s.Trigram("", ""))

	similar := s.Trigram("Icici Prudential", "Icici Prudental")
	unrelated := s.Trigram("Icici Prudential", "Quantum Leap")
	assert.Greater(t, similar, 0.5)
	assert.Less(t, unrelated, 0.2)
	assert.Greater(t, similar, unrelated)
}
