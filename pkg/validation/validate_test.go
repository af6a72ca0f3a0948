package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	valid := []string{"alice", "usr-42", "a.b_c-D9", "0"}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q) = %v, want nil", id, err)
		}
	}
	invalid := []string{"", "  ", "a|b", "a:b", "a b", "a/b", "naïve", "uid\n"}
	for _, id := range invalid {
		if err := ValidateUserID(id); err == nil {
			t.Errorf("ValidateUserID(%q) = nil, want error", id)
		}
	}
}

func TestValidateSend(t *testing.T) {
	if err := ValidateSend("alice", "bob", "hello there"); err != nil {
		t.Fatalf("valid send rejected: %v", err)
	}

	cases := []struct {
		name      string
		sender    string
		recipient string
		body      string
	}{
		{"empty sender", "", "bob", "hi"},
		{"empty recipient", "alice", "", "hi"},
		{"self send", "alice", "alice", "hi"},
		{"empty body", "alice", "bob", ""},
		{"separator in recipient", "alice", "bob|x", "hi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSend(tc.sender, tc.recipient, tc.body)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestPlaintextSizeCap(t *testing.T) {
	defer SetMaxPlaintextBytes(64 * 1024)
	SetMaxPlaintextBytes(16)

	if err := ValidateSend("alice", "bob", strings.Repeat("a", 16)); err != nil {
		t.Fatalf("at-cap body rejected: %v", err)
	}
	if err := ValidateSend("alice", "bob", strings.Repeat("a", 17)); err == nil {
		t.Fatal("over-cap body accepted")
	}

	// zero and negative are ignored
	SetMaxPlaintextBytes(0)
	if err := ValidateSend("alice", "bob", strings.Repeat("a", 16)); err != nil {
		t.Fatalf("cap changed by SetMaxPlaintextBytes(0): %v", err)
	}
}
