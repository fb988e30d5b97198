package related

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalOverlap(t *testing.T) {
	t.Run("identical texts score 1", func(t *testing.T) {
		s := "compound interest rewards patient investors"
		assert.InDelta(t, 1.0, lexicalOverlap(s, s), 1e-9)
	})

	t.Run("disjoint texts score 0", func(t *testing.T) {
		assert.Zero(t, lexicalOverlap(
			"compound interest rewards patience",
			"volcanic eruptions reshape coastlines",
		))
	})

	t.Run("partial overlap scores between", func(t *testing.T) {
		score := lexicalOverlap(
			"compound interest rewards patience",
			"compound interest punishes impatience",
		)
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	})

	t.Run("stopwords carry no signal", func(t *testing.T) {
		assert.Zero(t, lexicalOverlap(
			"the and of to in",
			"the and of to in",
		))
	})

	t.Run("case and width are normalized", func(t *testing.T) {
		assert.InDelta(t, 1.0, lexicalOverlap("COMPOUND Interest", "compound interest"), 1e-9)
	})

	t.Run("empty text scores 0", func(t *testing.T) {
		assert.Zero(t, lexicalOverlap("", "compound interest"))
	})
}

func TestTermSet(t *testing.T) {
	set := termSet("The investor's 401k compounds — slowly, but surely!")

	assert.Contains(t, set, "investor")
	assert.Contains(t, set, "401k")
	assert.Contains(t, set, "compounds")
	assert.NotContains(t, set, "the")
	assert.NotContains(t, set, "but")
	assert.NotContains(t, set, "s", "single-rune tokens are dropped")
}
