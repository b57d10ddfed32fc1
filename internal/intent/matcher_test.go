package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelbot/internal/knowledge"
)

type staticCorpus []knowledge.CorpusEntry

func (s staticCorpus) Corpus() []knowledge.CorpusEntry { return s }

func newTestMatcher(entries ...knowledge.CorpusEntry) *Matcher {
	return NewMatcher(staticCorpus(entries), Options{
		Language:      "english",
		HighThreshold: 70,
		LowThreshold:  45,
	})
}

func faqCorpus() staticCorpus {
	return staticCorpus{
		{Topic: "delivery_time", MatchText: "delivery time how long when will my parcel arrive"},
		{Topic: "prohibited_items", MatchText: "prohibited items forbidden restricted goods not allowed"},
		{Topic: "return_policy", MatchText: "return policy refund send back"},
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"How long does Delivery take?",
		"RETURNS and refunds!!!",
		"  spaced   out	text ",
	}
	for _, in := range inputs {
		once := Normalize(in, "english")
		twice := Normalize(once, "english")
		assert.Equal(t, once, twice, "normalization must be idempotent for %q", in)
	}
}

func TestNormalizeStemsWords(t *testing.T) {
	assert.Equal(t, Normalize("delivery", "english"), Normalize("deliveries", "english"))
}

func TestClassifyTrackingCandidate(t *testing.T) {
	m := newTestMatcher(faqCorpus()...)

	c := m.Classify("  zz-1234-5678 ")
	require.Equal(t, KindTracking, c.Kind)
	assert.Equal(t, "ZZ-1234-5678", c.Tracking)

	// too short for a tracking code
	c = m.Classify("AB-12")
	assert.NotEqual(t, KindTracking, c.Kind)

	// inner whitespace disqualifies the shape
	c = m.Classify("ABCD 1234 5678")
	assert.NotEqual(t, KindTracking, c.Kind)
}

func TestClassifyTrackingBeatsFAQ(t *testing.T) {
	m := newTestMatcher(knowledge.CorpusEntry{Topic: "codes", MatchText: "RR123456789 tracking code"})
	c := m.Classify("RR123456789")
	assert.Equal(t, KindTracking, c.Kind)
}

func TestClassifyConfidentMatch(t *testing.T) {
	m := newTestMatcher(faqCorpus()...)
	c := m.Classify("how long does delivery take")
	require.Equal(t, KindConfident, c.Kind)
	assert.Equal(t, "delivery_time", c.Topic)
}

func TestClassifyNoMatch(t *testing.T) {
	m := newTestMatcher(faqCorpus()...)
	assert.Equal(t, KindNoMatch, m.Classify("qwertyuiop zxcvbnm").Kind)
	assert.Equal(t, KindNoMatch, m.Classify("   ").Kind)
	assert.Equal(t, KindNoMatch, m.Classify("!!! ???").Kind)
}

func TestClassifyEmptyCorpus(t *testing.T) {
	m := newTestMatcher()
	assert.Equal(t, KindNoMatch, m.Classify("how long does delivery take").Kind)
}

func TestClassifyAmbiguousOrderedAndCapped(t *testing.T) {
	// craft entries sharing some vocabulary with the query so several
	// land between the thresholds
	m := NewMatcher(staticCorpus{
		{Topic: "a_topic", MatchText: "parcel insurance cover damage claims money"},
		{Topic: "b_topic", MatchText: "parcel weight size limits dimensions"},
		{Topic: "c_topic", MatchText: "parcel pickup points locations map"},
		{Topic: "d_topic", MatchText: "parcel customs declaration forms duty"},
	}, Options{Language: "english", HighThreshold: 95, LowThreshold: 10})

	c := m.Classify("parcel limits insurance")
	require.Equal(t, KindAmbiguous, c.Kind)
	require.NotEmpty(t, c.Candidates)
	assert.LessOrEqual(t, len(c.Candidates), 3)
	for i := 1; i < len(c.Candidates); i++ {
		prev, cur := c.Candidates[i-1], c.Candidates[i]
		if prev.Score == cur.Score {
			assert.Less(t, prev.Topic, cur.Topic, "equal scores must be topic-ordered")
		} else {
			assert.Greater(t, prev.Score, cur.Score)
		}
	}
}

func TestIsTrackingCandidate(t *testing.T) {
	code, ok := IsTrackingCandidate("ab12345678")
	require.True(t, ok)
	assert.Equal(t, "AB12345678", code)

	_, ok = IsTrackingCandidate("hello world")
	assert.False(t, ok)

	_, ok = IsTrackingCandidate("AB_1234567")
	assert.False(t, ok)
}
