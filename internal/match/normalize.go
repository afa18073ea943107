package match

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalizer canonicalizes business names for comparison. The legal-suffix
// token list comes from configuration.
type Normalizer struct {
	suffixes []string
}

func NewNormalizer(legalSuffixes []string) *Normalizer {
	return &Normalizer{suffixes: legalSuffixes}
}

// Name canonicalizes a vendor or counterparty name: full-width brackets
// become ASCII, legal-entity suffix tokens are stripped, whitespace is
// removed, and the result is uppercased. Pure and deterministic.
func (n *Normalizer) Name(text string) string {
	if text == "" {
		return ""
	}
	s := strings.NewReplacer("（", "(", "）", ")").Replace(text)
	for _, suffix := range n.suffixes {
		s = strings.ReplaceAll(s, suffix, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToUpper(s)
}

// Similarity returns a Jaro-Winkler similarity in [0,1]. The Winkler prefix
// bonus rewards shared leading runes, which suits short business names where
// the head token carries the identity. Symmetric; both-empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	r1, r2 := []rune(a), []rune(b)
	len1, len2 := len(r1), len(r2)
	matchWindow := maxInt(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	matches1 := make([]bool, len1)
	matches2 := make([]bool, len2)
	matches := 0
	for i := 0; i < len1; i++ {
		start := maxInt(0, i-matchWindow)
		end := minInt(len2, i+matchWindow+1)
		for j := start; j < end; j++ {
			if matches2[j] || r1[i] != r2[j] {
				continue
			}
			matches1[i] = true
			matches2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matches1[i] {
			continue
		}
		for !matches2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2)/m) / 3

	prefix := 0
	for i := 0; i < minInt(minInt(len1, len2), 4); i++ {
		if r1[i] != r2[i] {
			break
		}
		prefix++
	}
	return jaro + 0.1*float64(prefix)*(1-jaro)
}

// PartialSimilarity handles truncated bank descriptions: when the shorter
// normalized string (3+ runes) is contained in the longer it scores 0.8,
// otherwise a bounded edit-distance ratio applies.
func PartialSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len([]rune(a)) > len([]rune(b)) {
		short, long = b, a
	}
	if len([]rune(short)) >= 3 && strings.Contains(long, short) {
		return 0.8
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := maxInt(len([]rune(a)), len([]rune(b)))
	return 1 - float64(dist)/float64(maxLen)
}

// ContainsNGWord reports whether a candidate description carries one of the
// configured stop words (transfer/deposit/withdrawal markers that never name
// a vendor).
func ContainsNGWord(description string, ngWords []string) bool {
	for _, w := range ngWords {
		if w != "" && strings.Contains(description, w) {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
