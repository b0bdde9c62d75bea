// Package qid normalizes free-form Wikidata identifier values into canonical
// Q-numbers. Tag values in the wild are messy: lower-case ids, several ids
// joined by ";" or ",", ids pasted inside surrounding text.
package qid

import (
	"regexp"
	"strings"
)

var (
	exactRe = regexp.MustCompile(`^Q[0-9]+$`)
	looseRe = regexp.MustCompile(`Q[0-9]+`)
)

// Normalize splits a raw value on ";" and ",", trims and upper-cases each
// token, and returns the tokens that are whole Q-numbers. Tokens that are not
// a full match (e.g. "notaQ", "Q12abc") are dropped silently.
func Normalize(raw string) []string {
	var out []string
	for _, tok := range splitTokens(raw) {
		if exactRe.MatchString(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Extract is the loose variant of Normalize: it additionally pulls embedded
// Q-numbers out of tokens that contain surrounding text, so "fooQ99bar"
// yields "Q99". Order follows the input; nothing is de-duplicated here.
func Extract(raw string) []string {
	var out []string
	for _, tok := range splitTokens(raw) {
		out = append(out, looseRe.FindAllString(tok, -1)...)
	}
	return out
}

// IsCanonical reports whether s already is a canonical Q-number.
func IsCanonical(s string) bool {
	return exactRe.MatchString(s)
}

func splitTokens(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
