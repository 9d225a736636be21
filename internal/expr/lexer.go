package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"smartcollections/internal/criteria"
)

type tokenKind int

const (
	tokEOF       tokenKind = iota
	tokCriterion           // GENRE, TITLE, UNPLAYED, ...
	tokAnd                 // AND
	tokOr                  // OR
	tokNot                 // NOT
	tokLParen              // (
	tokRParen              // )
	tokString              // "quoted value" or 'quoted value'
)

type token struct {
	kind  tokenKind
	pos   int
	text  string        // source text of keywords
	value string        // unescaped string literal
	crit  criteria.Kind // for tokCriterion
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokString:
		return fmt.Sprintf("value %q", t.value)
	default:
		return strings.ToUpper(t.text)
	}
}

// tokenize splits input into tokens. Unknown words, stray characters and
// unterminated quotes are reported and skipped so that parsing can go on to
// find further errors.
func tokenize(input string) ([]token, []*ParseError) {
	var (
		tokens []token
		errs   []*ParseError
	)

	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i, text: ")"})
			i++
		case c == '"' || c == '\'':
			value, advance, ok := readQuoted(input[i:])
			if !ok {
				errs = append(errs, newError(i, "unterminated quoted value"))
			} else {
				tokens = append(tokens, token{kind: tokString, pos: i, value: value})
			}
			i += advance
		case isWordStart(input[i:]):
			word, advance := readWord(input[i:])
			if t, ok := keywordToken(word, i); ok {
				tokens = append(tokens, t)
			} else {
				errs = append(errs, newError(i, fmt.Sprintf("unknown keyword %q", word)))
			}
			i += advance
		default:
			r, size := utf8.DecodeRuneInString(input[i:])
			errs = append(errs, newError(i, fmt.Sprintf("unexpected character %q", r)))
			i += size
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, errs
}

func keywordToken(word string, pos int) (token, bool) {
	switch strings.ToUpper(word) {
	case "AND":
		return token{kind: tokAnd, pos: pos, text: word}, true
	case "OR":
		return token{kind: tokOr, pos: pos, text: word}, true
	case "NOT":
		return token{kind: tokNot, pos: pos, text: word}, true
	}
	if k, ok := criteria.Lookup(word); ok {
		return token{kind: tokCriterion, pos: pos, text: word, crit: k}, true
	}
	return token{}, false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return isWordRune(r)
}

// readWord consumes letters, digits and underscores. Non-ASCII letters are
// included so that they are reported as part of one unknown word.
func readWord(s string) (string, int) {
	end := 0
	for end < len(s) {
		r, size := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(r) {
			break
		}
		end += size
	}
	return s[:end], end
}

// readQuoted reads a literal opened by s[0]. A backslash escapes the next
// character. It returns the consumed length even when unterminated.
func readQuoted(s string) (string, int, bool) {
	quote := s[0]
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(s[i+1])
			i += 2
		case c == quote:
			return b.String(), i + 1, true
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", len(s), false
}
