package security

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

const (
	MaxNameLength        = 50
	MaxDescriptionLength = 1000
)

// SanitizeString trims whitespace, drops null bytes and caps the length at
// maxRunes characters.
func SanitizeString(input string, maxRunes int) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		input = string([]rune(input)[:maxRunes])
	}
	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return html.UnescapeString(htmlPolicy.Sanitize(input))
}

// CleanName strips markup from a village, character or mission name and
// rejects names that end up empty or too long.
func CleanName(input string) (string, error) {
	name := strings.Join(strings.Fields(SanitizeHTML(input)), " ")
	if name == "" {
		return "", fmt.Errorf("name must not be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return "", fmt.Errorf("name is %d characters, maximum is %d", n, MaxNameLength)
	}
	return name, nil
}

// CleanDescription strips markup and truncates free text.
func CleanDescription(input string) string {
	return SanitizeString(SanitizeHTML(input), MaxDescriptionLength)
}
