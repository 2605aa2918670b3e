// Package fuzzy normalizes free-form search prompts before they are sent to
// the recommendation service.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizePrompt folds a user prompt to a canonical form: NFKD
// decomposition with combining marks stripped, punctuation collapsed to
// spaces, whitespace runs collapsed, lowercased. A prompt that is only
// whitespace or punctuation normalizes to the empty string.
func (n *Normalizer) NormalizePrompt(prompt string) string {
	prompt = norm.NFKD.String(prompt)

	var result strings.Builder
	for _, r := range prompt {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	prompt = result.String()

	prompt = punctRegex.ReplaceAllString(prompt, " ")
	prompt = whitespaceRegex.ReplaceAllString(prompt, " ")
	prompt = strings.ToLower(strings.TrimSpace(prompt))

	return prompt
}
