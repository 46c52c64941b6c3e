// Package version compares version strings the way PHP's version_compare
// does, which is what requirement lists and runtimes report against.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

var dottedPattern = regexp.MustCompile(`^[0-9][0-9.]+$`)

// IsDotted reports whether s is a dotted numeric version such as "5.3.0".
// A single digit does not qualify.
func IsDotted(s string) bool {
	return dottedPattern.MatchString(s)
}

// specialForms orders the non-numeric parts. Lookup is by prefix, first
// match wins, so "alpha" is found before "a".
var specialForms = []struct {
	name  string
	order int
}{
	{"dev", 0},
	{"alpha", 1},
	{"a", 1},
	{"beta", 2},
	{"b", 2},
	{"RC", 3},
	{"rc", 3},
	{"#", 4},
	{"pl", 5},
	{"p", 5},
}

// Compare returns -1, 0 or 1 depending on whether a is lower than, equal
// to or greater than b.
func Compare(a, b string) int {
	if a == "" || b == "" {
		switch {
		case a == "" && b == "":
			return 0
		case a == "":
			return -1
		default:
			return 1
		}
	}

	pa := canonicalize(a)
	pb := canonicalize(b)

	i := 0
	for ; i < len(pa) && i < len(pb); i++ {
		if c := comparePart(pa[i], pb[i]); c != 0 {
			return c
		}
	}

	switch {
	case i < len(pa):
		if isNumber(pa[i]) {
			return 1
		}
		return compareTail(pa[i:], "#")
	case i < len(pb):
		if isNumber(pb[i]) {
			return -1
		}
		return -compareTail(pb[i:], "#")
	}
	return 0
}

// LessOrEqual reports whether a <= b.
func LessOrEqual(a, b string) bool {
	return Compare(a, b) <= 0
}

// compareTail ranks the remainder of the longer version against a
// placeholder part that orders like a number.
func compareTail(rest []string, placeholder string) int {
	return comparePart(rest[0], placeholder)
}

func comparePart(a, b string) int {
	an, bn := isNumber(a), isNumber(b)
	switch {
	case an && bn:
		return compareNumbers(a, b)
	case !an && !bn:
		return sign(specialOrder(a) - specialOrder(b))
	case an:
		return sign(specialOrder("#") - specialOrder(b))
	default:
		return sign(specialOrder(a) - specialOrder("#"))
	}
}

func compareNumbers(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		// Overlong numbers: compare by magnitude then lexically.
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return sign(len(a) - len(b))
		}
		return strings.Compare(a, b)
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func specialOrder(part string) int {
	for _, f := range specialForms {
		if strings.HasPrefix(part, f.name) {
			return f.order
		}
	}
	return -1
}

// canonicalize splits a version into parts. Separators "-", "_" and "+"
// count as ".", and a boundary between digits and other characters starts
// a new part.
func canonicalize(v string) []string {
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}

	var prev rune
	for i, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
		default:
			if i > 0 && cur.Len() > 0 && isDigit(prev) != isDigit(r) {
				flush()
			}
			cur.WriteRune(r)
		}
		prev = r
	}
	flush()
	return parts
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
