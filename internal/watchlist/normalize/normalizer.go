// Package normalize canonicalizes free text for watchlist comparison and
// resolves place-name variants. Every comparison path in the engine goes
// through this package so the rules live in exactly one place.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// accentTable maps the Latin letters that show up in Spanish-language input
// to their base letter. Anything not listed here goes through the generic
// Unicode decomposition fallback.
var accentTable = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a', 'â': 'a', 'ã': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e', 'ê': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i', 'î': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o', 'ô': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u', 'û': 'u',
	'ñ': 'n', 'ç': 'c',
	'Á': 'A', 'À': 'A', 'Ä': 'A', 'Â': 'A', 'Ã': 'A',
	'É': 'E', 'È': 'E', 'Ë': 'E', 'Ê': 'E',
	'Í': 'I', 'Ì': 'I', 'Ï': 'I', 'Î': 'I',
	'Ó': 'O', 'Ò': 'O', 'Ö': 'O', 'Ô': 'O', 'Õ': 'O',
	'Ú': 'U', 'Ù': 'U', 'Ü': 'U', 'Û': 'U',
	'Ñ': 'N', 'Ç': 'C',
}

var quoteReplacer = strings.NewReplacer(
	`"`, "", "'", "", "`", "", "´", "",
	"‘", "", "’", "", "“", "", "”", "",
	"«", "", "»", "",
)

// Normalize canonicalizes raw text for comparison: quotes stripped,
// diacritics folded to base letters, lower-cased, every rune that is not
// alphanumeric, whitespace or comma replaced by a space, and whitespace
// collapsed. Commas survive because they delimit compound locations such as
// "Madrid, España". The function is pure and idempotent.
func Normalize(text string) string {
	text = quoteReplacer.Replace(text)
	text = foldDiacritics(text)
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ',':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// foldDiacritics maps accented letters to their base letter, using the
// explicit table first and NFD decomposition for anything else.
func foldDiacritics(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if base, ok := accentTable[r]; ok {
			b.WriteRune(base)
			continue
		}
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			if !unicode.Is(unicode.Mn, d) {
				b.WriteRune(d)
			}
		}
	}
	return b.String()
}
