// Package textnorm holds the string folding shared by matching, dedup and
// franchise grouping.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Folder applies Unicode case folding. A Folder is not safe for concurrent use.
type Folder struct {
	caser cases.Caser
}

func NewFolder() *Folder {
	return &Folder{caser: cases.Fold()}
}

func (f *Folder) Fold(s string) string {
	return f.caser.String(s)
}

// Fold case-folds s with a fresh caser.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Key transliterates s to ASCII, lowercases it, drops every character that is
// neither a letter, a digit nor whitespace, and collapses whitespace runs.
// "Spider-Man: Homecoming" becomes "spiderman homecoming".
func Key(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// NormalizeCapitalization title-cases s when it is entirely lower or upper
// case and returns it unchanged otherwise.
func NormalizeCapitalization(s string) string {
	if s != strings.ToLower(s) && s != strings.ToUpper(s) {
		return s
	}
	return cases.Title(language.English).String(s)
}
