package util

import "strconv"

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

// ShortAddr abbreviates a base58 address or signature to "abcd..wxyz".
func ShortAddr(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:4] + ".." + a[len(a)-4:]
}
