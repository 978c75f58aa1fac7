package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	reQ        = regexp.MustCompile(`^[\p{L}\p{N} _'.,&/-]{1,50}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)
	reTaxID    = regexp.MustCompile(`^[0-9]{1,15}$`)
)

// Name validates a product or customer name: trimmed, 1..100 runes.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > 100 {
		return "", false
	}
	return s, true
}

func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reUsername.MatchString(s)
}

// Password only enforces bcrypt's input window; strength is checked when
// the admin account is seeded.
func Password(s string) bool {
	return len(s) >= 1 && len(s) <= 72
}

// Q validates a search query: trims, truncates to 50 and enforces allowed characters.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if utf8.RuneCountInString(s) > 50 {
		s = string([]rune(s)[:50])
	}
	return s, reQ.MatchString(s)
}

// ID parses a positive surrogate id.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Qty parses a positive sale quantity.
func Qty(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Stock parses a non-negative stock level.
func Stock(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Price parses a non-negative amount with at most 2 decimals.
func Price(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.Exponent() < -2 {
		return decimal.Zero, false
	}
	return d, true
}

// TaxID accepts an empty value or up to 15 digits.
func TaxID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return s, reTaxID.MatchString(s)
}
