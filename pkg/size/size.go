// Package size converts between byte counts and the two textual size
// formats used in requirement lists: PHP ini shorthand ("64M") and
// space-separated sizes with a unit ("10 MB").
package size

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	phpSizePattern = regexp.MustCompile(`^[0-9]+[A-Z]$`)
	sizePattern    = regexp.MustCompile(`(?i)^[0-9]+ [A-Z]+$`)

	// leadingFloat matches what a PHP float cast consumes from a string.
	leadingFloat = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?`)
)

// units is the cumulative-1024 ladder, smallest first.
var units = []string{"B", "KB", "MB", "GB", "TB"}

// IsPHPSize reports whether s looks like PHP ini shorthand such as "64M".
func IsPHPSize(s string) bool {
	return phpSizePattern.MatchString(s)
}

// IsSize reports whether s looks like "10 MB".
func IsSize(s string) bool {
	return sizePattern.MatchString(s)
}

// DecodePHPSize parses PHP ini shorthand. The unit letters k, m and g
// (any case) each add a factor of 1024 on top of the smaller ones.
func DecodePHPSize(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n := parseFloatPrefix(v)
	switch strings.ToLower(v[len(v)-1:]) {
	case "g":
		n *= 1024
		fallthrough
	case "m":
		n *= 1024
		fallthrough
	case "k":
		n *= 1024
	}
	return n
}

// DecodeSize parses "<number> <unit>" where unit is one of B, KB, MB, GB
// or TB. A missing or unknown unit leaves the number as is.
func DecodeSize(v string) float64 {
	parts := strings.Split(strings.TrimSpace(v), " ")
	n := parseFloatPrefix(parts[0])
	if len(parts) < 2 {
		return n
	}
	switch strings.ToUpper(parts[1]) {
	case "TB":
		n *= 1024
		fallthrough
	case "GB":
		n *= 1024
		fallthrough
	case "MB":
		n *= 1024
		fallthrough
	case "KB":
		n *= 1024
	}
	return n
}

// EncodeSize renders a byte count with the largest unit that keeps the
// number at or above 1, rounded to two decimals.
func EncodeSize(bytes float64) string {
	i := 0
	for bytes >= 1024 && i < len(units)-1 {
		bytes /= 1024
		i++
	}
	rounded := math.Round(bytes*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[i]
}

// parseFloatPrefix returns the numeric prefix of s, or 0 when there is none.
func parseFloatPrefix(s string) float64 {
	m := leadingFloat.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return 0
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return n
}
