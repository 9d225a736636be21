package franchise

import (
	"regexp"
	"strings"
)

var romanRx = regexp.MustCompile(`^M{0,3}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// parseRoman converts a well-formed Roman numeral using the subtractive
// rules. Case is ignored.
func parseRoman(s string) (int, bool) {
	s = strings.ToUpper(s)
	if s == "" || !romanRx.MatchString(s) {
		return 0, false
	}

	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}
