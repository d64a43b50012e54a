// Package email holds helpers for working with collaborator addresses.
package email

import (
	"strings"
	"unicode"
)

// NameFromAddress guesses a first and last name from the local part of an
// address, e.g. "mario.rossi@studio.it" gives ("Mario", "Rossi"). The last
// name is empty when the local part has a single segment; it is completed
// later through the portal.
func NameFromAddress(address string) (first, last string) {
	local := strings.TrimSpace(address)
	if at := strings.IndexByte(local, '@'); at > 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return "", ""
	}
	first = capitalize(parts[0])
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}
	return first, last
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
