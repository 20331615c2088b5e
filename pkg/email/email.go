// Package email holds small helpers around e-mail addresses used as logins.
package email

import (
	"strings"
	"unicode"
)

// Normalize lowercases and trims an address so lookups are case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsPlausible reports whether the address has a local part and a dotted domain.
func IsPlausible(address string) bool {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return false
	}
	domain := address[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(address, " \t\r\n")
}

// DeriveNameFromEmail guesses first and last names from the local part
// ("awa.diop@mairie.sn" gives "Awa", "Diop"). Staff accounts created without
// names use it.
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})

	if len(parts) == 0 {
		return "Agent", "Mairie"
	}

	first := capitalize(parts[0])
	last := "Mairie"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
