package validation

import (
	"fmt"
	"strings"
)

// ValidationError marks caller-fixable bad input; handlers map it to 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

var maxPlaintextBytes int64 = 64 * 1024

// SetMaxPlaintextBytes configures the plaintext size cap for send requests.
// Zero or negative keeps the current value.
func SetMaxPlaintextBytes(n int64) {
	if n > 0 {
		maxPlaintextBytes = n
	}
}

// ValidateUserID checks that an id is non-empty and sticks to the opaque-id
// charset. The charset excludes the '|' and ':' runes used as separators in
// store keys, which keeps key parsing unambiguous.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("user id missing")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return invalid("user id contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateSend checks a send request before it reaches moderation.
func ValidateSend(senderID, recipientID, plaintext string) error {
	if err := ValidateUserID(senderID); err != nil {
		return err
	}
	if err := ValidateUserID(recipientID); err != nil {
		return invalid("recipient id invalid: %v", err)
	}
	if senderID == recipientID {
		return invalid("cannot message yourself")
	}
	if plaintext == "" {
		return invalid("message body missing")
	}
	if int64(len(plaintext)) > maxPlaintextBytes {
		return invalid("message body exceeds %d bytes", maxPlaintextBytes)
	}
	return nil
}
