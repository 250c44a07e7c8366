package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ShortIDLength is the number of uuid characters kept in a short id.
const ShortIDLength = 8

// NewShortID returns the first eight hex characters of a random UUID.
func NewShortID() string {
	return uuid.New().String()[:ShortIDLength]
}

// JoinID joins non-empty parts with "-", e.g. JoinID("tc04", "txn", "ab12cd34")
// gives "tc04-txn-ab12cd34".
func JoinID(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}
