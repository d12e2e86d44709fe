// Package postprocess strips chat-model artifacts from an LLM translation so
// the text can be logged and spoken as is.
package postprocess

import (
	"regexp"
	"strings"
)

var (
	thinkingRe = regexp.MustCompile(
		`(?is)<(thinking|think|reasoning)>.*?</(thinking|think|reasoning)>`,
	)
	// An opened block with no closing tag means the reply was cut off.
	openThinkingRe = regexp.MustCompile(`(?is)<(?:thinking|think|reasoning)>.*$`)

	preambleRe = regexp.MustCompile(
		`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s+)?(?:here(?:'s| is)\s+)?(?:the\s+)?(?:translated text|translation)(?:\s*\([^)]*\))?(?:\s+(?:in|into)\s+[\p{L} ]+)?\s*:`,
	)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'«':  '»',
	'“':  '”',
	'‘':  '’',
}

// Clean removes reasoning blocks, a leading "Translation:" style preamble,
// a "<Language>:" label for targetName and wrapping quotes, then folds the
// reply onto one line.
func Clean(text, targetName string) string {
	text = thinkingRe.ReplaceAllString(text, "")
	text = openThinkingRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if loc := preambleRe.FindStringIndex(text); loc != nil {
		text = strings.TrimSpace(text[loc[1]:])
	}
	if targetName != "" {
		label := targetName + ":"
		if len(text) > len(label) && strings.EqualFold(text[:len(label)], label) {
			text = strings.TrimSpace(text[len(label):])
		}
	}

	text = unquote(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func unquote(text string) string {
	runes := []rune(text)
	if len(runes) < 2 {
		return text
	}
	if closing, ok := quotePairs[runes[0]]; ok && runes[len(runes)-1] == closing {
		return strings.TrimSpace(string(runes[1 : len(runes)-1]))
	}
	return text
}
