// Package numfmt turns locale-ambiguous numeric tokens into unambiguous values.
//
// Documents mix European and American conventions without any locale hint, so
// the separator roles are decided from the token itself:
//
//   - both ',' and '.' present: the later separator is the decimal point
//   - a separator repeated more than once (and not mixed): thousands grouping, removed
//   - a single '.': decimal point
//   - a single ',': thousands when exactly three digits follow it, decimal otherwise
package numfmt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reClean   = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)$`)
	spaceRepl = strings.NewReplacer(" ", "", "\u00a0", "", "\u2009", "", "\u202f", "", "'", "")
)

// Parse returns the numeric value of s, or 0 when s is malformed.
func Parse(s string) float64 {
	d, ok := ParseDecimal(s)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

// ParseDecimal is the exact variant of Parse. ok is false for malformed input,
// in which case the returned value is zero.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	clean, ok := Canonical(s)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Canonical rewrites s into a plain "-1234.5" form without grouping.
func Canonical(s string) (string, bool) {
	s = spaceRepl.Replace(strings.TrimSpace(s))
	s = strings.TrimRight(s, "€$£%")
	s = strings.TrimLeft(s, "€$£")
	if s == "" {
		return "", false
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		last := max(strings.LastIndex(s, ","), strings.LastIndex(s, "."))
		head := strings.NewReplacer(",", "", ".", "").Replace(s[:last])
		s = head + "." + s[last+1:]
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	case commas == 1:
		i := strings.IndexByte(s, ',')
		tail := s[i+1:]
		if len(tail) == 3 && isDigits(tail) {
			s = s[:i] + tail
		} else if tail == "" {
			s = s[:i]
		} else {
			s = s[:i] + "." + tail
		}
	}

	if !reClean.MatchString(s) {
		return "", false
	}
	return s, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
