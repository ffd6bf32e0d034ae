package util

import (
	"regexp"
	"strconv"
	"strings"
)

var firstNumberRegex = regexp.MustCompile(`\d[\d,]*`)

// ParsePriceText extracts the first price figure from marketplace display
// text such as "NT$1,299" or "1,299元". Returns false when no digits are
// present.
func ParsePriceText(s string) (int64, bool) {
	match := firstNumberRegex.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
