package utils

import (
	"regexp"
	"strings"
)

var supplementaryPlane = regexp.MustCompile(`[\x{10000}-\x{10FFFF}]`)

// FilterUnicode drops characters outside the Basic Multilingual Plane.
// MySQL deployments on utf8mb3 cannot store 4-byte sequences, and an emoji
// in a subject line must not fail the whole insert.
func FilterUnicode(input string) string {
	return strings.TrimSpace(supplementaryPlane.ReplaceAllString(input, ""))
}
