package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/go-homedir"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// stopWords are dropped by Tokenize; they carry no meaning for lexical matching.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "may": true,
	"of": true, "on": true, "or": true, "such": true, "that": true, "the": true,
	"their": true, "them": true, "they": true, "this": true, "to": true,
	"was": true, "were": true, "which": true, "with": true,
}

func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Tokenize lower-cases text, splits it on anything that is not a letter or
// digit and drops stop words.
func Tokenize(text string) []string {
	parts := nonAlphanumeric.Split(strings.ToLower(text), -1)

	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || stopWords[p] {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// Truncate cuts s to at most maxRunes runes without splitting a UTF-8 sequence.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	runes := []rune(s)
	return string(runes[:maxRunes])
}

// NormalizePhase turns "Defense Evasion" or " defense-evasion " into
// "defense-evasion".
func NormalizePhase(phase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phase)), "-")
}

func ExpandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
