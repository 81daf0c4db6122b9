// Package phone normalizes and formats Romanian phone numbers.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// CountryPrefix is the only country the portal serves.
const CountryPrefix = "+40"

// ErrInvalid is returned for numbers that do not reduce to nine national digits.
var ErrInvalid = errors.New("invalid phone number")

var nonDigitRegexp = regexp.MustCompile(`\D`)

// Normalize converts the 0xxx, 40xxx, +40xxx and 0040xxx forms of a national
// number into +40 followed by its nine digits. Landlines such as 021 numbers
// normalize too; use Mobile where the number has to receive SMS.
func Normalize(raw string) (string, error) {
	digits := nonDigitRegexp.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(digits, "0040"):
		digits = digits[4:]
	case strings.HasPrefix(digits, "40") && len(digits) == 11:
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = digits[1:]
	}
	if len(digits) != 9 {
		return "", ErrInvalid
	}
	return CountryPrefix + digits, nil
}

// Valid reports whether raw normalizes.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}

// Mobile reports whether raw normalizes to a mobile number, which is the
// only kind that can receive the login code.
func Mobile(raw string) bool {
	n, err := Normalize(raw)
	return err == nil && n[len(CountryPrefix)] == '7'
}

// Format renders a number as "+40 XXX XXX XXX". Input that does not
// normalize is returned unchanged.
func Format(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return raw
	}
	d := n[len(CountryPrefix):]
	return CountryPrefix + " " + d[:3] + " " + d[3:6] + " " + d[6:]
}

// Mask hides all but the last three digits, for "code sent to" notices.
func Mask(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return raw
	}
	d := n[len(CountryPrefix):]
	return CountryPrefix + " " + strings.Repeat("*", 6) + d[6:]
}
