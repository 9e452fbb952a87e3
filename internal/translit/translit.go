// Package translit normalizes and compares Bulgarian locality names across
// Cyrillic and Latin scripts. Providers return names in either script, so
// every comparison goes through a fixed transliteration table rather than
// byte equality.
package translit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// latin maps uppercase Bulgarian Cyrillic to the official streamlined
// Latin transliteration.
var latin = map[rune]string{
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E",
	'Ж': "ZH", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L",
	'М': "M", 'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S",
	'Т': "T", 'У': "U", 'Ф': "F", 'Х': "H", 'Ц': "TS", 'Ч': "CH",
	'Ш': "SH", 'Щ': "SHT", 'Ъ': "A", 'Ь': "Y", 'Ю': "YU", 'Я': "YA",
}

var upper = cases.Upper(language.Bulgarian)

// settlementPrefixes are dropped from trusted settlement names before
// querying or comparing: "ГРАД БУРГАС" and "Бургас" must match.
var settlementPrefixes = []string{"ГРАД ", "СЕЛО ", "ГР. ", "С. ", "ГР.", "С."}

// Normalize uppercases s with Bulgarian casing rules and collapses
// whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(upper.String(s)), " ")
}

// CleanLocality normalizes a settlement name and strips the leading
// settlement-type prefix, if any.
func CleanLocality(s string) string {
	n := Normalize(s)
	for _, p := range settlementPrefixes {
		if strings.HasPrefix(n, p) {
			return strings.TrimSpace(strings.TrimPrefix(n, p))
		}
	}
	return n
}

// Latinize transliterates Cyrillic runes via the fixed table. Runes outside
// the table (already-Latin letters, digits, punctuation) pass through.
func Latinize(s string) string {
	var b strings.Builder
	for _, r := range Normalize(s) {
		if l, ok := latin[r]; ok {
			b.WriteString(l)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Match reports whether two locality names refer to the same place. The
// comparison strategies apply in fixed priority order: exact normalized
// match, transliterated match, then substring containment in either
// direction for compound names ("Бургас" vs "Крайморие, Бургас").
func Match(a, b string) bool {
	na, nb := CleanLocality(a), CleanLocality(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	la, lb := Latinize(na), Latinize(nb)
	if la == lb {
		return true
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
