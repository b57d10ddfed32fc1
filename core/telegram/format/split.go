package format

import "strings"

// MaxMessageLength is the Telegram hard limit on message text length.
const MaxMessageLength = 4096

// SplitText slices text into chunks not exceeding limit runes each.
// It prefers splitting on paragraph breaks, then line breaks, then spaces,
// and falls back to a hard cut for unbroken runs.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	if len(runes) <= limit {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := findCut(runes, limit)
		part := strings.TrimRight(string(runes[:cut]), "\n ")
		if part != "" {
			parts = append(parts, part)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), "\n "))
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func findCut(runes []rune, limit int) int {
	window := string(runes[:limit])
	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return len([]rune(window[:idx+len(sep)]))
		}
	}
	return limit
}
