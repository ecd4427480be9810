package util

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LowerLabel lowercases a category or model label. Config validation and label
// matching both go through it so they always agree.
func LowerLabel(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Lower(language.Und).String(s)
}
