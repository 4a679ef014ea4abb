package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScores(t *testing.T) {
	scores, err := parseScores("0|85\n1|40\n2|100\n", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{85, 40, 100}, scores)
}

func TestParseScoresPartialOutput(t *testing.T) {
	// missing lines fall back to the default score
	scores, err := parseScores("1|30", 3)
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultScore, 30, DefaultScore}, scores)
}

func TestParseScoresClampsRange(t *testing.T) {
	scores, err := parseScores("0|150\n1|-20", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 0}, scores)
}

func TestParseScoresRejectsGarbage(t *testing.T) {
	_, err := parseScores("the model rambled instead", 2)
	assert.Error(t, err)
}
