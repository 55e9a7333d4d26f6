package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL_StripsTrackingParamsAndFragment(t *testing.T) {
	got := NormalizeURL("https://X.com/a/?utm_source=twitter&id=5#section")
	assert.Equal(t, "https://x.com/a?id=5", got)
}

func TestComputeURLHash_IgnoresTrackingParamDifferences(t *testing.T) {
	h1 := ComputeURLHash("https://x.com/a?utm_source=twitter")
	h2 := ComputeURLHash("https://x.com/a?utm_source=fb")
	assert.Equal(t, h1, h2)
}

func TestComputeContentHash_EmptyBelowMinLength(t *testing.T) {
	assert.Equal(t, "", ComputeContentHash("too short"))
}

func TestComputeContentHash_StableOverFirst1000Chars(t *testing.T) {
	base := make([]byte, 1000)
	for i := range base {
		base[i] = 'a'
	}
	content1 := string(base) + "tail-one"
	content2 := string(base) + "tail-two-different"
	assert.Equal(t, ComputeContentHash(content1), ComputeContentHash(content2))
}

func TestNormalizeTitle_StripsPunctuationAndWhitespace(t *testing.T) {
	got := NormalizeTitle("Reliance Profit Jumps 12% in Q2 Results!!")
	assert.Equal(t, "reliance profit jumps 12 in q2 results", got)
}

func TestSimilarityRatio_FuzzyTitleMatch(t *testing.T) {
	stored := NormalizeTitle("reliance profit jumps 12 percent in q2")
	incoming := NormalizeTitle("Reliance Profit Jumps 12% in Q2 Results")
	ratio := similarityRatio(incoming, stored)
	assert.GreaterOrEqual(t, ratio, 0.65)
}

func TestSimilarityRatio_DissimilarTitlesBelowThreshold(t *testing.T) {
	ratio := similarityRatio(NormalizeTitle("apple launches new iphone"), NormalizeTitle("oil prices crash amid opec dispute"))
	assert.Less(t, ratio, 0.65)
}
