// Package answer canonicalizes learner answers before grading.
//
// Free text is forgiving: case, accents, punctuation and spacing are
// ignored. Multiple-choice answers are never normalized and must match the
// option text exactly.
package answer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/b2english/tensequest/internal/content"
)

var punctuation = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`~()]")

// Normalize lower-cases raw, removes punctuation, strips diacritics and
// collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
//
// Punctuation goes first: removing it can join marks that compose under
// NFC, and the composition has to happen in the same pass.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = punctuation.ReplaceAllString(s, "")
	s = stripDiacritics(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeStrict is the fill-blank and order-words variant: whitespace
// and case are ignored and trailing periods dropped, everything else is
// significant.
func NormalizeStrict(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	s = strings.ToLower(s)
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(s)
}

// ForSubmission returns the form of raw sent to the grading backend.
func ForSubmission(q content.Question, raw string) string {
	if q.IsChoice() {
		return raw
	}
	return Normalize(raw)
}

// Match compares a learner answer with the expected one locally.
func Match(q content.Question, given string) bool {
	switch {
	case q.IsChoice():
		return given == q.Answer
	case q.Kind == content.KindFillBlank || q.Kind == content.KindOrderWords:
		return NormalizeStrict(given) == NormalizeStrict(q.Answer)
	default:
		return Normalize(given) == Normalize(q.Answer)
	}
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
