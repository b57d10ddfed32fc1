package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const sampleCorpus = `
topics:
  delivery_time:
    title: Delivery time
    answer: Delivery usually takes 3-7 business days.
    keywords: [how long, delivery time, when will it arrive]
  prohibited_items:
    title: Prohibited items
    answer: Aerosols, batteries and perishables cannot be shipped.
    link: https://example.test/restrictions
    keywords: [forbidden, restricted, not allowed]
`

func TestLoadAndAnswer(t *testing.T) {
	b := New(writeCorpus(t, sampleCorpus))

	require.Equal(t, 2, b.Len())

	e, err := b.Answer("prohibited_items")
	require.NoError(t, err)
	assert.Equal(t, "prohibited_items", e.Topic)
	assert.Contains(t, e.Answer, "Aerosols")
	assert.Equal(t, "https://example.test/restrictions", e.Link)

	_, err = b.Answer("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorpusStableOrderAndMatchText(t *testing.T) {
	b := New(writeCorpus(t, sampleCorpus))

	corpus := b.Corpus()
	require.Len(t, corpus, 2)
	assert.Equal(t, "delivery_time", corpus[0].Topic)
	assert.Equal(t, "prohibited_items", corpus[1].Topic)

	assert.Contains(t, corpus[0].MatchText, "delivery time")
	assert.Contains(t, corpus[0].MatchText, "how long")
	assert.NotContains(t, corpus[0].MatchText, "_")
}

func TestMissingFileDegradesToEmptyCorpus(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Empty(t, b.Corpus())
	_, err := b.Answer("anything")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptFileDegradesToEmptyCorpus(t *testing.T) {
	b := New(writeCorpus(t, "topics: [not, a, map"))
	assert.Empty(t, b.Corpus())
	assert.Zero(t, b.Len())
}
