package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenMessageID returns a new opaque message id.
func GenMessageID() string {
	return "msg-" + uuid.NewString()
}

// PairKey returns the canonical key for the unordered user pair {a, b}:
// the two ids sorted lexicographically and joined with "|". Both
// participants derive the same key regardless of send direction, which is
// what makes a conversation addressable without a stored aggregate.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// SplitPairKey is the inverse of PairKey. ok is false when the input is not
// a well-formed pair key.
func SplitPairKey(pair string) (a, b string, ok bool) {
	i := strings.IndexByte(pair, '|')
	if i <= 0 || i == len(pair)-1 {
		return "", "", false
	}
	return pair[:i], pair[i+1:], true
}

// Counterparty returns the other member of the pair, or "" when the user is
// not a participant.
func Counterparty(pair, userID string) string {
	a, b, ok := SplitPairKey(pair)
	if !ok {
		return ""
	}
	switch userID {
	case a:
		return b
	case b:
		return a
	}
	return ""
}
