package matching

import "strings"

// Scorer provides the string comparison algorithms used for AMC name
// matching
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Trigram calculates trigram set similarity between two strings, following
// PostgreSQL pg_trgm semantics: each string is lowercased, padded with two
// spaces on the left and one on the right, cut into 3-grams, and the score
// is |intersection| / |union| of the two gram sets.
func (s *Scorer) Trigram(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0.0
		}
		return 1.0
	}

	aGrams := trigrams(a)
	bGrams := trigrams(b)
	if len(aGrams) == 0 || len(bGrams) == 0 {
		return 0.0
	}

	shared := 0
	for g := range aGrams {
		if _, ok := bGrams[g]; ok {
			shared++
		}
	}

	union := len(aGrams) + len(bGrams) - shared
	if union == 0 {
		return 0.0
	}
	return float64(shared) / float64(union)
}

// trigrams returns the set of padded 3-grams for a string. Words are padded
// independently so word boundaries weigh the same as in pg_trgm.
func trigrams(s string) map[string]struct{} {
	grams := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			grams[padded[i:i+3]] = struct{}{}
		}
	}
	return grams
}
