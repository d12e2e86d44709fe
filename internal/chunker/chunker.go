// Package chunker splits text into pieces short enough for speech
// endpoints that cap the length of a single request.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultMaxRunes is the per-request limit of the Google Translate TTS
// endpoint.
const DefaultMaxRunes = 100

// sentenceEnds covers Latin, Arabic and Devanagari terminators.
const sentenceEnds = ".!?؟।॥\n"

// clauseEnds are weaker boundaries tried after sentences.
const clauseEnds = ",;:،؛"

// Split breaks text into pieces of at most maxRunes code points. Splits are
// attempted, in order of preference, after:
//  1. Sentence-ending punctuation
//  2. Clause punctuation (commas, semicolons, colons)
//  3. Whitespace (word boundary)
//  4. A hard cut at maxRunes
//
// Pieces are trimmed and empty pieces dropped, so whitespace-only text
// yields nil. maxRunes <= 0 uses DefaultMaxRunes.
func Split(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	var chunks []string
	remaining := []rune(strings.TrimSpace(text))

	for len(remaining) > maxRunes {
		cut := findSplit(remaining, maxRunes)
		if piece := strings.TrimSpace(string(remaining[:cut])); piece != "" {
			chunks = append(chunks, piece)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}

	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}

	return chunks
}

// findSplit returns the rune index at which to cut, at most maxRunes.
func findSplit(runes []rune, maxRunes int) int {
	candidate := runes[:maxRunes]

	if i := lastBoundary(candidate, func(r rune) bool { return strings.ContainsRune(sentenceEnds, r) }); i > 0 {
		return i + 1
	}
	if i := lastBoundary(candidate, func(r rune) bool { return strings.ContainsRune(clauseEnds, r) }); i > 0 {
		return i + 1
	}
	if i := lastBoundary(candidate, unicode.IsSpace); i > 0 {
		return i
	}

	return maxRunes
}

func lastBoundary(runes []rune, match func(rune) bool) int {
	for i := len(runes) - 1; i > 0; i-- {
		if match(runes[i]) {
			return i
		}
	}
	return -1
}
