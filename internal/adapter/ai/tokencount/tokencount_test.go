package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateEmptyText(t *testing.T) {
	c := NewCounter()
	count, approximate := c.Estimate("", "gpt-4o-mini")
	assert.Zero(t, count)
	assert.False(t, approximate)
}

func TestEstimateReturnsPositiveCount(t *testing.T) {
	c := NewCounter()
	text := "the quick brown fox jumps over the lazy dog"

	count, _ := c.Estimate(text, "gpt-4o-mini")
	assert.Greater(t, count, 0)

	// Repeat uses the cached encoding and stays deterministic.
	again, _ := c.Estimate(text, "gpt-4o-mini")
	assert.Equal(t, count, again)
}

func TestEstimateUnknownModelStillCounts(t *testing.T) {
	c := NewCounter()
	count, _ := c.Estimate("some text to count tokens for", "totally-unknown-model-v99")
	assert.Greater(t, count, 0)
}

func TestEstimateLongerTextCountsMore(t *testing.T) {
	c := NewCounter()
	short, _ := c.Estimate("one two three four", "gpt-4o-mini")
	long, _ := c.Estimate("one two three four five six seven eight nine ten eleven twelve", "gpt-4o-mini")
	assert.Greater(t, long, short)
}
