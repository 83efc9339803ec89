// Package postcode validates UK postcodes and looks them up on postcodes.io.
package postcode

import (
	"regexp"
	"strings"
)

var (
	validRe   = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?\d[A-Z]{2}$`)
	extractRe = regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2})\b`)
	areaRe    = regexp.MustCompile(`^[A-Z]{1,2}`)
)

func compact(pc string) string {
	return strings.ToUpper(strings.Join(strings.Fields(pc), ""))
}

// Valid reports whether pc is a well-formed UK postcode.
func Valid(pc string) bool {
	return validRe.MatchString(compact(pc))
}

// Normalize uppercases pc and puts a single space before the inward code.
func Normalize(pc string) string {
	c := compact(pc)
	if len(c) < 5 {
		return c
	}
	return c[:len(c)-3] + " " + c[len(c)-3:]
}

// Area returns the postcode area, the leading one or two letters ("SW" for
// "SW1A 1AA"). Empty input yields "".
func Area(pc string) string {
	return areaRe.FindString(compact(pc))
}

// Extract finds the last postcode mentioned in free text such as a shop address.
func Extract(text string) (string, bool) {
	matches := extractRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return Normalize(matches[len(matches)-1]), true
}
