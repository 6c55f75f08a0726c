package model

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

var (
	wordSeparators = regexp.MustCompile(`[_\-\s]+`)

	// acronyms are rendered upper-case in labels ("userId" -> "User ID").
	acronyms = map[string]string{
		"id":   "ID",
		"url":  "URL",
		"uri":  "URI",
		"api":  "API",
		"html": "HTML",
		"ip":   "IP",
	}
)

// DefaultLabeler turns a field name or path into a human-friendly label. Only
// the last path segment is used, split on underscores, dashes and camelCase
// boundaries: "contact.phoneNumber" becomes "Phone Number".
func DefaultLabeler(name string) string {
	segments := valuepath.Split(name)
	if len(segments) == 0 {
		return ""
	}
	name = segments[len(segments)-1]

	var words []string
	for _, chunk := range wordSeparators.Split(name, -1) {
		words = append(words, splitCamel(chunk)...)
	}
	for i, word := range words {
		words[i] = labelWord(word)
	}
	return strings.Join(words, " ")
}

func splitCamel(input string) []string {
	if input == "" {
		return nil
	}
	runes := []rune(input)
	var (
		words []string
		start int
	)
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := (unicode.IsLower(prev) && unicode.IsUpper(cur)) ||
			(unicode.IsLetter(prev) && unicode.IsDigit(cur)) ||
			(unicode.IsDigit(prev) && unicode.IsLetter(cur))
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}

func labelWord(word string) string {
	lower := strings.ToLower(word)
	if acronym, ok := acronyms[lower]; ok {
		return acronym
	}
	return Capitalize(lower)
}
