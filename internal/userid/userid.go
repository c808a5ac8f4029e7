// Package userid normalizes the user identifiers the sale coordinator
// uses as ledger keys.
package userid

import "strings"

// Normalize trims surrounding whitespace and lower-cases the remainder so
// that identifiers equal after normalization denote the same user.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
