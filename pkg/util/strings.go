package util

import (
	"regexp"
	"strconv"
	"strings"
)

var symbolRe = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeSymbol trims and upper-cases s and reports whether the result is a
// ticker of 1-10 characters from A-Z, 0-9, '.' and '-'.
func NormalizeSymbol(s string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	return sym, symbolRe.MatchString(sym)
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
