package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"John Smith", "JOHN SMITH"},
		{"  john   smith  ", "JOHN SMITH"},
		{"Smith, John", "SMITH JOHN"},
		{"D'Andre Swift", "DANDRE SWIFT"},
		{"Jean-Pierre Paul", "JEAN PIERRE PAUL"},
		{"Marvin Harrison Jr.", "MARVIN HARRISON"},
		{"Marvin Harrison Jr", "MARVIN HARRISON"},
		{"Frank Gore Sr.", "FRANK GORE"},
		{"Robert Griffin III", "ROBERT GRIFFIN"},
		{"Kenneth Walker IV", "KENNETH WALKER"},
		{"J.J. Watt", "JJ WATT"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestSimilarity_ExactAndNormalizedMatch(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("John Smith", "John Smith"))
	assert.Equal(t, 1.0, Similarity("john smith", "JOHN SMITH"))
	assert.Equal(t, 1.0, Similarity("Marvin Harrison Jr.", "Marvin Harrison"))
	assert.Equal(t, 1.0, Similarity("Smith John", "John Smith"))
}

func TestSimilarity_Initials(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("J. Doe", "John Doe"))
	assert.Equal(t, 1.0, Similarity("John Doe", "J. Doe"))
}

func TestSimilarity_PartialOverlap(t *testing.T) {
	// One shared token out of three distinct.
	got := Similarity("John Smith", "John Jones")
	assert.InDelta(t, 1.0/3.0, got, 1e-9)
}

func TestSimilarity_NoOverlap(t *testing.T) {
	assert.Zero(t, Similarity("John Smith", "Dave Jones"))
}

func TestSimilarity_EmptyNames(t *testing.T) {
	assert.Zero(t, Similarity("", "John Smith"))
	assert.Zero(t, Similarity("John Smith", ""))
	assert.Zero(t, Similarity("", ""))
}

func TestSimilarity_TokenConsumedOnce(t *testing.T) {
	// The initial "J" must not match both tokens of "John Johnson".
	got := Similarity("J", "John Johnson")
	assert.InDelta(t, 0.5, got, 1e-9)
}
