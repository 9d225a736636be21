package criteria

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type operator int

const (
	opEqual operator = iota
	opGreater
	opGreaterEqual
	opLess
	opLessEqual
)

const numericEpsilon = 0.1

// two-character operators first so ">=" is not read as ">"
var operatorPrefixes = []struct {
	text string
	op   operator
}{
	{">=", opGreaterEqual},
	{"<=", opLessEqual},
	{">", opGreater},
	{"<", opLess},
	{"=", opEqual},
}

// splitOperator strips an optional leading comparison operator, returning
// def when none is present.
func splitOperator(value string, def operator) (operator, string) {
	v := strings.TrimSpace(value)
	for _, p := range operatorPrefixes {
		if strings.HasPrefix(v, p.text) {
			return p.op, strings.TrimSpace(v[len(p.text):])
		}
	}
	return def, v
}

// parseNumberOperand reads "[op]number" with "=" as the default operator.
func parseNumberOperand(value string) (operator, float64, bool) {
	op, rest := splitOperator(value, opEqual)
	n, err := strconv.ParseFloat(rest, 64)
	if err != nil || math.IsNaN(n) {
		return op, 0, false
	}
	return op, n, true
}

func compareNumber(actual float64, op operator, want float64) bool {
	switch op {
	case opGreater:
		return actual > want
	case opGreaterEqual:
		return actual >= want
	case opLess:
		return actual < want
	case opLessEqual:
		return actual <= want
	default:
		return math.Abs(actual-want) < numericEpsilon
	}
}

// matchNumber applies a numeric operand to an optional actual value.
func matchNumber(actual *float64, value string) bool {
	if actual == nil {
		return false
	}
	op, want, ok := parseNumberOperand(value)
	if !ok {
		return false
	}
	return compareNumber(*actual, op, want)
}

// parseDaysOperand reads "[op]days" with ">" as the default operator.
func parseDaysOperand(value string) (operator, int, bool) {
	op, rest := splitOperator(value, opGreater)
	n, err := strconv.Atoi(rest)
	if err != nil {
		return op, 0, false
	}
	return op, n, true
}

// daysSince counts whole days elapsed from date to now, truncated toward
// zero. Dates in the future give negative counts, so a date a few hours
// ahead is day 0 and 36 hours ahead is day -1.
func daysSince(now, date time.Time) int {
	return int(now.Sub(date).Hours() / 24)
}

// matchDays compares the age of date in days against the operand. Equality
// accepts a one-day slack either side.
func matchDays(now time.Time, date *time.Time, value string) bool {
	if date == nil {
		return false
	}
	op, want, ok := parseDaysOperand(value)
	if !ok {
		return false
	}

	age := daysSince(now, *date)
	switch op {
	case opGreater:
		return age > want
	case opGreaterEqual:
		return age >= want
	case opLess:
		return age < want
	case opLessEqual:
		return age <= want
	default:
		d := age - want
		return d >= -1 && d <= 1
	}
}
