package i18n

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*[^{}]+?\s*\}\}`)

// Mask swaps every {{placeholder}} for a numbered marker that translation
// providers leave alone. Unmask reverses it.
func Mask(s string) (string, []string) {
	var tokens []string
	masked := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		tokens = append(tokens, m)
		return marker(len(tokens) - 1)
	})
	return masked, tokens
}

func marker(i int) string { return fmt.Sprintf("__%d__", i) }

// Unmask restores tokens. It fails when the provider dropped or altered a
// marker, so the caller can keep the source text instead.
func Unmask(s string, tokens []string) (string, error) {
	for i, tok := range tokens {
		m := marker(i)
		if !strings.Contains(s, m) {
			return "", fmt.Errorf("i18n: placeholder %s lost in translation", tok)
		}
		s = strings.ReplaceAll(s, m, tok)
	}
	return s, nil
}

// Placeholders lists the {{…}} tokens of s in order.
func Placeholders(s string) []string {
	return placeholderRe.FindAllString(s, -1)
}
