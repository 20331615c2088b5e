package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so a crafted identifier
// cannot land in another caller's bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
