package grader

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceSpanRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls a JSON object out of free-form model text. It
// tries, in order: a fenced code block, the span between the first "{"
// and the last "}", and finally a generic brace-matching pattern.
func ExtractJSON(s string) (string, bool) {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		return strings.TrimSpace(s[first : last+1]), true
	}

	if m := braceSpanRe.FindString(s); m != "" {
		return strings.TrimSpace(m), true
	}

	return "", false
}
