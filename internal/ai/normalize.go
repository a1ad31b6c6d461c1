package ai

import (
	"regexp"
	"strings"
)

// FallbackSPL is used when the model produced nothing usable for an
// ask-mode question.
const FallbackSPL = "search index=main earliest=-15m | head 20"

var (
	fencePattern = regexp.MustCompile("(?s)```(?:\\w+)?\\s*(.*?)```")
	labelPattern = regexp.MustCompile(`(?i)^(spl|splunk)\s*query\s*:\s*`)
	queryPattern = regexp.MustCompile(`(?i)^query\s*:\s*`)
)

// validSPLPrefixes are the generating commands the Splunk jobs endpoint
// accepts as a leading term.
var validSPLPrefixes = []string{
	"search ", "|", "tstats ", "from ", "mstats ",
	"metadata ", "inputlookup ", "rest ", "makeresults",
}

// NormalizeSPL reduces raw model output to a single SPL query string:
// prefer fenced content, strip language labels and wrappers, keep one
// line, and guarantee a valid leading search command.
func NormalizeSPL(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return FallbackSPL
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return FallbackSPL
	}

	// Drop a bare language label on its own first line.
	first := strings.ToLower(strings.TrimSuffix(lines[0], ":"))
	if (first == "spl" || first == "splunk" || first == "sql") && len(lines) > 1 {
		lines = lines[1:]
	}

	text = strings.Join(lines, "\n")
	text = labelPattern.ReplaceAllString(text, "")
	text = queryPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))

	// Only the first non-empty line survives, to shed narrative text.
	for _, line := range strings.Split(text, "\n") {
		if candidate := strings.TrimSpace(line); candidate != "" {
			text = candidate
			break
		}
	}

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "spl ") {
		text = strings.TrimSpace(text[4:])
		lower = strings.ToLower(text)
	}

	if !hasValidPrefix(lower) {
		text = "search " + text
	}
	if strings.HasPrefix(text, "|") {
		text = "search * " + text
	}
	return text
}

func hasValidPrefix(lower string) bool {
	for _, prefix := range validSPLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
