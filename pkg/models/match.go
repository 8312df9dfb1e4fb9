package models

// MatchType classifies how a raw reference matched (or failed to match) the
// master. Stored as text on staging rows so reviewers can see why a
// candidate scored the way it did.
type MatchType string

const (
	MatchEmptyInput      MatchType = "EMPTY_INPUT"
	MatchCodeExact       MatchType = "CODE_EXACT"
	MatchNameExact       MatchType = "NAME_EXACT"
	MatchNamePartial     MatchType = "NAME_PARTIAL"
	MatchNameFuzzyHigh   MatchType = "NAME_FUZZY_HIGH"
	MatchNameFuzzyMedium MatchType = "NAME_FUZZY_MEDIUM"
	MatchNameFuzzyLow    MatchType = "NAME_FUZZY_LOW"
	MatchNone            MatchType = "NO_MATCH"
)

// MatchInfo is the outcome of matching one raw reference against the master.
// AmcID is empty for EMPTY_INPUT and NO_MATCH.
type MatchInfo struct {
	AmcID      string    `json:"amc_id,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Confidence float64   `json:"confidence"`
}

// Matched reports whether the outcome points at a master row.
func (m MatchInfo) Matched() bool {
	return m.AmcID != ""
}
