package agent

import (
	"errors"
	"regexp"
	"strings"
)

var errEmptyContent = errors.New("empty assistant content")

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```")

// Extract returns the JSON payload inside assistant content.
//
// It trims whitespace, unwraps a ``` or ```json fence (also when the fence
// is surrounded by prose) and otherwise falls back to the span between the
// first '{' and the last '}'. Content without any candidate is returned
// trimmed so the parser reports the real syntax error.
func Extract(content string) (string, error) {
	s := strings.TrimSpace(content)
	if s == "" {
		return "", errEmptyContent
	}

	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(s, "```") {
		// Unterminated fence.
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}

	if s == "" {
		return "", errEmptyContent
	}

	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}

	return s, nil
}
