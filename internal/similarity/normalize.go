// Package similarity is the pure, deterministic kernel consumed by the
// normalizer and scoring workers: text normalization, tokenization, and
// Jaccard similarity over token sets.
package similarity

import "strings"

// Normalize right-strips trailing whitespace on every line and drops fully
// empty leading/trailing lines, joining the remainder with "\n". It
// performs no other transformation — in particular it does not touch
// indentation or case, since the tokenizer is what makes the scoring
// structural rather than textual.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\r\f\v")
	}
	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
