// Package similarity computes lexical similarity between short text
// fragments. It combines three independent metrics — token-set overlap,
// term-frequency cosine, and character edit distance — so that no single
// metric's blind spot dominates: Jaccard ignores word order and frequency,
// cosine ignores small character-level noise, and Levenshtein is sensitive
// to string length.
package similarity

import (
	"math"
	"strings"
)

// DefaultThreshold is the score at or above which two fragments are
// considered similar when the caller does not pick its own threshold.
const DefaultThreshold = 0.75

// Weights controls the contribution of each metric to the combined score.
type Weights struct {
	Jaccard     float64
	Cosine      float64
	Levenshtein float64
}

// DefaultWeights favors edit distance slightly for robustness to small
// typos while still respecting token-level structure.
var DefaultWeights = Weights{Jaccard: 0.3, Cosine: 0.3, Levenshtein: 0.4}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Jaccard returns |intersection| / |union| over case-insensitive word sets.
// Two empty strings score 1.0; disjoint vocabularies score 0.0.
func Jaccard(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// Cosine returns the cosine of the angle between term-frequency vectors
// built over the combined vocabulary. Sensitive to repeated-word emphasis,
// insensitive to sentence length.
func Cosine(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}
	freqA := make(map[string]int, len(tokensA))
	for _, t := range tokensA {
		freqA[t]++
	}
	freqB := make(map[string]int, len(tokensB))
	for _, t := range tokensB {
		freqB[t]++
	}
	var dot, normA, normB float64
	for t, n := range freqA {
		dot += float64(n) * float64(freqB[t])
		normA += float64(n) * float64(n)
	}
	for _, n := range freqB {
		normB += float64(n) * float64(n)
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Levenshtein returns 1 - editDistance/max(len(a), len(b)) over runes.
// Identical strings score 1.0; two empty strings score 1.0 by definition.
func Levenshtein(a, b string) float64 {
	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) == 0 && len(runesB) == 0 {
		return 1.0
	}
	distance := editDistance(runesA, runesB)
	longest := len(runesA)
	if len(runesB) > longest {
		longest = len(runesB)
	}
	return 1.0 - float64(distance)/float64(longest)
}

// editDistance is the classic two-row dynamic program.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Combined returns the weighted average of the three metrics. Zero-valued
// weights fall back to DefaultWeights; weights are normalized so they need
// not sum to exactly 1.
func Combined(a, b string, weights Weights) float64 {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	total := weights.Jaccard + weights.Cosine + weights.Levenshtein
	if total == 0 {
		weights = DefaultWeights
		total = 1
	}
	score := weights.Jaccard*Jaccard(a, b) +
		weights.Cosine*Cosine(a, b) +
		weights.Levenshtein*Levenshtein(a, b)
	return score / total
}

// AreSimilar is a boolean gate over Combined with the default weights.
func AreSimilar(a, b string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Combined(a, b, DefaultWeights) >= threshold
}

// Match is the result of a best-match search over a candidate set.
type Match struct {
	Index int     // position in the candidate slice, -1 when no match
	Score float64 // combined similarity of the winning candidate
	Found bool
}

// NoMatch is returned when no candidate clears the threshold.
var NoMatch = Match{Index: -1}

// FindBestMatch scores query against every candidate's extracted text and
// returns the single highest-scoring candidate when its score clears the
// threshold. Ties break in favor of the first candidate encountered, so the
// result is deterministic given input ordering.
func FindBestMatch[T any](query string, candidates []T, text func(T) string, threshold float64) Match {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	best := NoMatch
	for i, candidate := range candidates {
		score := Combined(query, text(candidate), DefaultWeights)
		if score > best.Score {
			best = Match{Index: i, Score: score, Found: true}
		}
	}
	if !best.Found || best.Score < threshold {
		return NoMatch
	}
	return best
}
