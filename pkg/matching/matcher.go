// Package matching implements tiered matching of raw AMC references against
// the canonical master. Tiers run in confidence order: exact code membership,
// exact normalized name, partial name, then trigram fuzzy.
package matching

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/normalizers"
)

const (
	// ConfidenceCodeExact through ConfidenceFuzzyFloor are the tier scores
	// and cutoffs shared with the staging review workflow.
	ConfidenceCodeExact   = 1.0
	ConfidenceNameExact   = 0.95
	ConfidenceNamePartial = 0.85
	FuzzyHighThreshold    = 0.80
	FuzzyMediumThreshold  = 0.65
	FuzzyFloor            = 0.50

	// Partial matching only applies to short names; beyond this length a
	// shared first token stops being meaningful evidence.
	partialMaxLength = 15
)

// Matcher matches raw references against a snapshot of the master.
type Matcher struct {
	scorer  *Scorer
	masters []candidate
}

type candidate struct {
	master         *models.AmcMaster
	normalizedName string
	normalizedFull string
}

// NewMatcher builds a matcher over a snapshot of master rows. The snapshot
// is sorted by amc_id so ties resolve deterministically.
func NewMatcher(masters []models.AmcMaster) *Matcher {
	sorted := make([]models.AmcMaster, len(masters))
	copy(sorted, masters)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AmcID < sorted[j].AmcID
	})

	candidates := make([]candidate, len(sorted))
	for i := range sorted {
		candidates[i] = candidate{
			master:         &sorted[i],
			normalizedName: normalizers.NormalizeAmcName(sorted[i].AmcShortName),
			normalizedFull: normalizers.NormalizeAmcName(sorted[i].AmcFullName),
		}
	}
	return &Matcher{scorer: NewScorer(), masters: candidates}
}

// Match resolves one raw reference to a master row and a confidence. The
// first tier that produces a hit wins; fuzzy is only consulted when all
// deterministic tiers miss.
func (m *Matcher) Match(ref models.RawAmcReference) models.MatchInfo {
	code := normalizers.NormalizeAmcCode(ref.AmcCode)
	name := normalizers.NormalizeAmcName(ref.AmcName)

	if code == "" && name == "" {
		return models.MatchInfo{MatchType: models.MatchEmptyInput}
	}

	if info, ok := m.matchCode(code); ok {
		return info
	}
	if info, ok := m.matchNameExact(name); ok {
		return info
	}
	if info, ok := m.matchNamePartial(name); ok {
		return info
	}
	if info, ok := m.matchNameFuzzy(name); ok {
		return info
	}
	return models.MatchInfo{MatchType: models.MatchNone}
}

// matchCode checks membership in any master's code sets. Registrars reuse
// each other's codes often enough that a code registered under one source is
// still stronger evidence than any name tier when it arrives from another.
func (m *Matcher) matchCode(code string) (models.MatchInfo, bool) {
	if code == "" {
		return models.MatchInfo{}, false
	}
	for _, c := range m.masters {
		if c.master.HasCode(code) {
			return models.MatchInfo{AmcID: c.master.AmcID, MatchType: models.MatchCodeExact, Confidence: ConfidenceCodeExact}, true
		}
	}
	return models.MatchInfo{}, false
}

func (m *Matcher) matchNameExact(name string) (models.MatchInfo, bool) {
	if name == "" {
		return models.MatchInfo{}, false
	}
	for _, c := range m.masters {
		if c.normalizedName == name || c.normalizedFull == name {
			return models.MatchInfo{AmcID: c.master.AmcID, MatchType: models.MatchNameExact, Confidence: ConfidenceNameExact}, true
		}
	}
	return models.MatchInfo{}, false
}

// matchNamePartial handles short names that share a first token or prefix
// with a master name, like "Hdfc" against "Hdfc Asset Management".
func (m *Matcher) matchNamePartial(name string) (models.MatchInfo, bool) {
	if name == "" || len(name) > partialMaxLength {
		return models.MatchInfo{}, false
	}
	firstToken := firstField(name)
	for _, c := range m.masters {
		if c.normalizedName == "" {
			continue
		}
		if firstField(c.normalizedName) == firstToken ||
			strings.HasPrefix(c.normalizedName, name) ||
			strings.HasPrefix(name, c.normalizedName) {
			return models.MatchInfo{AmcID: c.master.AmcID, MatchType: models.MatchNamePartial, Confidence: ConfidenceNamePartial}, true
		}
	}
	return models.MatchInfo{}, false
}

func (m *Matcher) matchNameFuzzy(name string) (models.MatchInfo, bool) {
	if name == "" {
		return models.MatchInfo{}, false
	}

	best := models.MatchInfo{}
	bestScore := 0.0
	for _, c := range m.masters {
		score := m.scorer.Trigram(name, c.normalizedName)
		if full := m.scorer.Trigram(name, c.normalizedFull); full > score {
			score = full
		}
		// Snapshot is id-sorted, so strict > keeps the lowest amc_id on ties.
		if score > bestScore {
			bestScore = score
			best = models.MatchInfo{AmcID: c.master.AmcID, Confidence: score}
		}
	}

	if bestScore < FuzzyFloor {
		return models.MatchInfo{}, false
	}
	switch {
	case bestScore >= FuzzyHighThreshold:
		best.MatchType = models.MatchNameFuzzyHigh
	case bestScore >= FuzzyMediumThreshold:
		best.MatchType = models.MatchNameFuzzyMedium
	default:
		best.MatchType = models.MatchNameFuzzyLow
	}
	return best, true
}

func firstField(s string) string {
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		return s[:idx]
	}
	return s
}
