// Package utils provides small helpers for parsing request parameters.
// They are independent of domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts s to an int, returning def when s is empty or not
// an integer.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampLimit parses a list limit. Missing, invalid, or non-positive values
// yield def; values above upper are capped.
func ClampLimit(s string, def, upper int) int {
	n := AtoiDefault(strings.TrimSpace(s), def)
	if n <= 0 {
		return def
	}
	if upper > 0 && n > upper {
		return upper
	}
	return n
}

// Flag reports whether a query flag is set ("1", "true", "yes", "on").
func Flag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
