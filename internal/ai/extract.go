package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	trailRe   = regexp.MustCompile(`,(\s*[}\]])`)
)

// extractJSON pulls the JSON object out of raw model text. Markdown fences
// are stripped first; failing that, the substring from the first '{' to the
// last '}' is taken. If a straight parse fails, heuristic repairs are
// applied and parsing is retried exactly once.
func extractJSON(raw string) (json.RawMessage, error) {
	candidate := raw
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	candidate = strings.TrimSpace(candidate)

	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), nil
	}

	repaired := repairJSON(candidate)
	if json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired), nil
	}

	var probe any
	err := json.Unmarshal([]byte(repaired), &probe)
	return nil, &MalformedError{Raw: raw, Err: err}
}

// repairJSON fixes the three failure shapes the model actually produces:
// curly quotes, bare object keys, and trailing commas.
func repairJSON(s string) string {
	r := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", `'`, "’", `'`,
	)
	s = r.Replace(s)
	s = bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = trailRe.ReplaceAllString(s, `$1`)
	return s
}
