package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultNormalizer() *Normalizer {
	return NewNormalizer([]string{"株式会社", "(株)", "㈱", "合同会社", "有限会社"})
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	n := defaultNormalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"株式会社コーヒーローストビバーチェ", "コーヒーローストビバーチェ"},
		{"セブンイレブン（株）", "セブンイレブン"},
		{"Seven Eleven Japan", "SEVENELEVENJAPAN"},
		{"  acme  co  ", "ACMECO"},
		{"ヤマト運輸株式会社", "ヤマト運輸"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, n.Name(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeNameDeterministic(t *testing.T) {
	t.Parallel()
	n := defaultNormalizer()
	for i := 0; i < 3; i++ {
		require.Equal(t, "セブンイレブン", n.Name("セブンイレブン（株）"))
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, Similarity("", ""))
	require.Equal(t, 0.0, Similarity("ACME", ""))
	require.Equal(t, 1.0, Similarity("ACME", "ACME"))

	// symmetric
	a, b := "SEVENELEVEN", "SEVENELEVENJAPAN"
	require.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)

	// bounded
	for _, pair := range [][2]string{
		{"ACME", "ZZZZ"},
		{"A", "AB"},
		{"コーヒーロースト", "コーヒーローストビバーチェ"},
	} {
		s := Similarity(pair[0], pair[1])
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}

	// prefix-rewarding: shared head scores above shared tail
	require.Greater(t, Similarity("ACMESTORE", "ACMESHOP"), Similarity("STOREACME", "SHOPACME"))
}

func TestSimilarityDeterministic(t *testing.T) {
	t.Parallel()
	first := Similarity("SEVEN-ELEVEN", "SEVENELEVENJAPAN")
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Similarity("SEVEN-ELEVEN", "SEVENELEVENJAPAN"))
	}
	require.Greater(t, first, 0.8)
}

func TestPartialSimilarity(t *testing.T) {
	t.Parallel()

	// substring containment of a 3+ rune key
	require.Equal(t, 0.8, PartialSimilarity("ヤマト", "ヤマト運輸"))
	require.Equal(t, 0.8, PartialSimilarity("AMAZONCOJP", "AMAZON"))

	// too short for containment, falls back to edit distance
	s := PartialSimilarity("AB", "ABCDEF")
	require.Less(t, s, 0.8)
	require.GreaterOrEqual(t, s, 0.0)

	require.Equal(t, 0.0, PartialSimilarity("", "ACME"))
}

func TestContainsNGWord(t *testing.T) {
	t.Parallel()
	ng := []string{"振込", "入金", "出金"}

	require.True(t, ContainsNGWord("振込 カ）ヤマト", ng))
	require.True(t, ContainsNGWord("ATM出金", ng))
	require.False(t, ContainsNGWord("セブンイレブン", ng))
	require.False(t, ContainsNGWord("", ng))
	require.False(t, ContainsNGWord("anything", nil))
}
