package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShort(t *testing.T) {
	assert.Nil(t, SplitText("", 100))
	assert.Equal(t, []string{"hello"}, SplitText("hello", 100))
}

func TestSplitTextPrefersParagraphBreaks(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	parts := SplitText(text, 50)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("a", 40), parts[0])
	assert.Equal(t, strings.Repeat("b", 40), parts[1])
}

func TestSplitTextFallsBackToSpaces(t *testing.T) {
	text := strings.Repeat("word ", 30)
	parts := SplitText(strings.TrimSpace(text), 52)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 52)
		assert.False(t, strings.HasPrefix(p, " "))
	}
	assert.Equal(t, strings.TrimSpace(text), strings.Join(parts, " "))
}

func TestSplitTextHardCut(t *testing.T) {
	text := strings.Repeat("x", 130)
	parts := SplitText(text, 50)
	require.Len(t, parts, 3)
	assert.Equal(t, 50, len(parts[0]))
	assert.Equal(t, 50, len(parts[1]))
	assert.Equal(t, 30, len(parts[2]))
}

func TestSplitTextKeepsMultibyteRunesIntact(t *testing.T) {
	text := strings.Repeat("п", 120)
	parts := SplitText(text, 50)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.True(t, strings.HasPrefix(p, "п"))
		assert.LessOrEqual(t, len([]rune(p)), 50)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	out, err := EscapeMarkdown("a_b*c", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, `a\_b\*c`, out)

	out, err = EscapeMarkdown("1.5 (kg)", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, `1\.5 \(kg\)`, out)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}
