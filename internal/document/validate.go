package document

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MinDescriptionLen is the shortest description accepted as a product.
const MinDescriptionLen = 3

// Valid reports whether the line carries a usable code or description and a
// positive quantity.
func (p ProductLine) Valid() bool {
	if err := validate.Struct(p); err != nil {
		return false
	}
	if strings.TrimSpace(p.Code) == "" && len([]rune(strings.TrimSpace(p.Description))) < MinDescriptionLen {
		return false
	}
	return true
}

// CountInvalid returns how many lines fail Valid.
func CountInvalid(lines []ProductLine) int {
	n := 0
	for _, l := range lines {
		if !l.Valid() {
			n++
		}
	}
	return n
}

// Dedupe drops exact repeats on (code, description, quantity), keeping order.
func Dedupe(lines []ProductLine) []ProductLine {
	type key struct {
		code, desc string
		qty        float64
	}
	seen := make(map[key]struct{}, len(lines))
	out := make([]ProductLine, 0, len(lines))
	for _, l := range lines {
		k := key{l.Code, l.Description, l.Quantity}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}
