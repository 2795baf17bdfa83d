package qa

import (
	"strings"
	"unicode"
)

// greetings are bare salutations that should get a canned reply instead of
// a retrieval round-trip.
var greetings = map[string]struct{}{
	"cześć":         {},
	"czesc":         {},
	"hej":           {},
	"hejka":         {},
	"witaj":         {},
	"witam":         {},
	"siema":         {},
	"siemka":        {},
	"dzień dobry":   {},
	"dzien dobry":   {},
	"dobry wieczór": {},
	"dobry wieczor": {},
	"hello":         {},
	"hi":            {},
	"hey":           {},
}

// greetingReply is returned for bare greetings.
const greetingReply = "Cześć! Zadaj mi pytanie o zaindeksowane dokumenty, a poszukam odpowiedzi."

// IsGreeting reports whether the message is only a salutation, ignoring
// case, surrounding whitespace and trailing punctuation. A greeting followed
// by an actual question is not a greeting.
func IsGreeting(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRightFunc(normalized, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	if normalized == "" {
		return false
	}
	_, ok := greetings[normalized]
	return ok
}
