package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setMaster(t *testing.T) {
	t.Helper()
	if err := SetMasterKeyHex(testMasterKey); err != nil {
		t.Fatalf("SetMasterKeyHex: %v", err)
	}
	t.Cleanup(func() { _ = SetMasterKeyHex("") })
}

func TestDeriveConversationKeyOrderIndependent(t *testing.T) {
	setMaster(t)
	k1, err := DeriveConversationKey("alice", "bob")
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}
	k2, err := DeriveConversationKey("bob", "alice")
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("keys differ for the same pair in different order")
	}
	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
}

func TestDeriveConversationKeyDistinctPerPair(t *testing.T) {
	setMaster(t)
	k1, _ := DeriveConversationKey("alice", "bob")
	k2, _ := DeriveConversationKey("alice", "carol")
	if bytes.Equal(k1, k2) {
		t.Fatalf("different pairs derived the same key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setMaster(t)
	key, _ := DeriveConversationKey("alice", "bob")
	for _, pt := range []string{
		"hello there",
		"",
		"héllo wörld — ユニコード",
		strings.Repeat("x", 10_000),
	} {
		ct, err := Encrypt([]byte(pt), key)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", pt, err)
		}
		got, err := Decrypt(ct, key)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", pt, err)
		}
		if string(got) != pt {
			t.Fatalf("round trip mismatch: got %q want %q", got, pt)
		}
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	setMaster(t)
	key, _ := DeriveConversationKey("alice", "bob")
	a, _ := Encrypt([]byte("same plaintext"), key)
	b, _ := Encrypt([]byte("same plaintext"), key)
	if bytes.Equal(a, b) {
		t.Fatalf("two encryptions produced identical blobs; nonce reuse?")
	}
}

func TestDecryptFailuresAreDistinct(t *testing.T) {
	setMaster(t)
	key, _ := DeriveConversationKey("alice", "bob")
	ct, _ := Encrypt([]byte("secret"), key)

	var derr *DecryptionError

	// tampered ciphertext
	bad := append([]byte(nil), ct...)
	bad[len(bad)-1] ^= 0x01
	if _, err := Decrypt(bad, key); !errors.As(err, &derr) {
		t.Fatalf("tampered ciphertext: want *DecryptionError, got %v", err)
	}

	// wrong key
	other, _ := DeriveConversationKey("alice", "carol")
	if _, err := Decrypt(ct, other); !errors.As(err, &derr) {
		t.Fatalf("wrong key: want *DecryptionError, got %v", err)
	}

	// truncated blob
	if _, err := Decrypt(ct[:4], key); !errors.As(err, &derr) {
		t.Fatalf("truncated: want *DecryptionError, got %v", err)
	}
}

func TestSetMasterKeyHexValidation(t *testing.T) {
	if err := SetMasterKeyHex("zz"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if err := SetMasterKeyHex("abcd"); err == nil {
		t.Fatalf("expected error for short key")
	}
	if err := SetMasterKeyHex(""); err != nil {
		t.Fatalf("clearing the key should not error: %v", err)
	}
	if _, err := DeriveConversationKey("a", "b"); !errors.Is(err, ErrNoMasterKey) {
		t.Fatalf("want ErrNoMasterKey without configuration, got %v", err)
	}
}
