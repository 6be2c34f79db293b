package chapter

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRoman = errors.New("invalid roman numeral")

// MaxNumber is the largest chapter number a roman numeral can express.
const MaxNumber = 3999

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// ToRoman converts 1..MaxNumber to an upper-case roman numeral.
// Out-of-range values return "".
func ToRoman(n int) string {
	if n < 1 || n > MaxNumber {
		return ""
	}
	var b strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String()
}

// ParseRoman converts a canonical roman numeral to its value.
// Non-canonical forms such as "IIII" or "VX" are rejected.
func ParseRoman(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRoman)
	}

	n, rest := 0, s
	for _, r := range romanTable {
		for strings.HasPrefix(rest, r.symbol) {
			n += r.value
			rest = rest[len(r.symbol):]
		}
	}
	if rest != "" || ToRoman(n) != s {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRoman, s)
	}
	return n, nil
}
