package pipeline

import "strings"

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving the enclosed text.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json")
		if firstLine := strings.TrimSpace(s[:idx]); firstLine == "" || isLanguageTag(firstLine) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) <= 16
}

// cleanModelReply prepares a raw model reply for JSON parsing. It strips the
// BOM, zero-width and non-whitespace control characters, removes markdown
// fencing, and repairs doubled escape sequences the model sometimes emits.
func cleanModelReply(raw string) string {
	s := stripFences(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\uFEFF': // BOM
		case r >= '\u200B' && r <= '\u200D': // zero-width characters
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	// Doubled escapes: the model occasionally double-escapes newlines and
	// tabs inside JSON string values.
	s = strings.ReplaceAll(s, `\\n`, `\n`)
	s = strings.ReplaceAll(s, `\\t`, `\t`)
	s = strings.ReplaceAll(s, `\\"`, `\"`)

	return strings.TrimSpace(s)
}
