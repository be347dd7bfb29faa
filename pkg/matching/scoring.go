package matching

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Dimension weights for the overall score. Name is the most reliable
// distinguishing signal, address provides confirming evidence, and phone is a
// rare but strong corroborator; its low weight compensates for its frequent
// absence rather than its unreliability.
const (
	nameWeight    = 0.5
	addressWeight = 0.4
	phoneWeight   = 0.1
)

// phoneDigits is how many trailing digits two phone numbers must agree on,
// tolerating optional country/area-code prefixes.
const phoneDigits = 10

// Scorer computes pairwise similarity between an entity and a restaurant
// summary along the name, address, and phone dimensions.
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ScoreResult is the outcome of scoring one entity/restaurant pair.
type ScoreResult struct {
	Score      float64
	Details    models.MatchDetails
	Confidence models.Confidence
	Candidate  bool // false when the score falls below the low-confidence floor
}

// Score computes the weighted overall similarity between an entity and a
// restaurant group's denormalized summary.
func (s *Scorer) Score(entity *models.Entity, restaurant models.RestaurantSummary) ScoreResult {
	details := models.MatchDetails{
		Name:    s.NameSimilarity(entity.Name, restaurant.Name),
		Address: s.AddressSimilarity(entity.Address, restaurant.Address),
	}
	if entity.Phone != nil {
		details.Phone = s.PhoneSimilarity(*entity.Phone, restaurant.Phone)
	}

	score := s.WeightedScore(
		map[string]float64{
			"name":    details.Name,
			"address": details.Address,
			"phone":   details.Phone,
		},
		map[string]float64{
			"name":    nameWeight,
			"address": addressWeight,
			"phone":   phoneWeight,
		},
	)

	confidence, ok := models.ConfidenceForScore(score)
	return ScoreResult{
		Score:      score,
		Details:    details,
		Confidence: confidence,
		Candidate:  ok,
	}
}

// NameSimilarity compares two restaurant names. Exact normalized match is
// 1.0; containment rewards short-name subsumption ("Jade" inside "Jade Garden
// Buffet") with min/max length; equal or contained key-words variants score
// 0.95 and 0.85; otherwise fall back to edit-distance similarity. Either name
// missing scores 0 so a match is never driven by address alone.
func (s *Scorer) NameSimilarity(a, b string) float64 {
	na := normalizers.Name(a)
	nb := normalizers.Name(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentRatio(na, nb)
	}

	ka := normalizers.NameKeywords(a)
	kb := normalizers.NameKeywords(b)
	if ka != "" && kb != "" {
		if ka == kb {
			return 0.95
		}
		if strings.Contains(ka, kb) || strings.Contains(kb, ka) {
			return 0.85
		}
	}

	return s.Levenshtein(na, nb)
}

// AddressSimilarity compares two addresses after suffix stripping. Addresses
// rarely match exactly across sources, so sharing two or more significant
// tokens counts as a 0.7 partial match before falling back to edit distance.
func (s *Scorer) AddressSimilarity(a, b string) float64 {
	na := normalizers.Address(a)
	nb := normalizers.Address(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}
	if sharedSignificantTokens(na, nb) >= 2 {
		return 0.7
	}
	return s.Levenshtein(na, nb)
}

// PhoneSimilarity is binary: 1.0 when both numbers, stripped of formatting,
// agree on their last 10 digits; 0 otherwise. A missing value is never a
// match signal.
func (s *Scorer) PhoneSimilarity(a, b string) float64 {
	da := normalizers.Phone(a)
	db := normalizers.Phone(b)
	if len(da) < phoneDigits || len(db) < phoneDigits {
		return 0.0
	}
	if da[len(da)-phoneDigits:] == db[len(db)-phoneDigits:] {
		return 1.0
	}
	return 0.0
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// Levenshtein calculates the Levenshtein distance between two strings
// Returns a similarity score between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	sim := 1.0 - float64(distance)/float64(maxLen)
	if sim < 0 {
		return 0.0
	}
	return sim
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// WeightedScore calculates a weighted average of scores
func (s *Scorer) WeightedScore(scores map[string]float64, weights map[string]float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	var totalWeight float64
	var weightedSum float64

	for field, score := range scores {
		weight := 1.0 // Default weight
		if w, ok := weights[field]; ok {
			weight = w
		}
		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}

// containmentRatio scores one name contained in the other by relative length.
func containmentRatio(a, b string) float64 {
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return float64(shorter) / float64(longer)
}

// sharedSignificantTokens counts tokens longer than two characters that
// appear in both normalized addresses.
func sharedSignificantTokens(a, b string) int {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		if len(t) > 2 {
			tokens[t] = true
		}
	}
	count := 0
	for _, t := range strings.Fields(b) {
		if len(t) > 2 && tokens[t] {
			count++
			delete(tokens, t)
		}
	}
	return count
}
