package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/lenslink/messaging/pkg/utils"
)

// Conversation bodies are encrypted with AES-256-GCM under a key derived per
// user pair. Derivation is deterministic and order-independent: both
// participants (and the server acting for them) compute the same key from the
// sorted pair alone, so no key exchange or per-conversation key storage is
// needed. Keys are expanded with HKDF-SHA256 from a 32-byte service master
// secret, which is the only secret that has to be provisioned.

var masterKey []byte

// ErrNoMasterKey is returned when cryptographic operations are attempted
// before SetMasterKeyHex.
var ErrNoMasterKey = errors.New("security: master key not configured")

// DecryptionError reports a ciphertext that could not be authenticated or
// decoded. It is a distinct type so callers never confuse a corrupt or
// wrong-key message with an empty one.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// SetMasterKeyHex installs the service master secret from a 64-hex string
// (32 bytes). An empty string clears the key.
func SetMasterKeyHex(hexKey string) error {
	if hexKey == "" {
		masterKey = nil
		return nil
	}
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.New("master key must be 32 bytes (AES-256)")
	}
	masterKey = b
	return nil
}

// Enabled reports whether a master key is configured.
func Enabled() bool { return len(masterKey) == 32 }

// DeriveConversationKey returns the 32-byte AES key for the unordered pair
// {userA, userB}. The pair is sorted before derivation so the result is
// identical for either argument order.
func DeriveConversationKey(userA, userB string) ([]byte, error) {
	if !Enabled() {
		return nil, ErrNoMasterKey
	}
	info := []byte("lenslink/conversation:" + utils.PairKey(userA, userB))
	r := hkdf.New(sha256.New, masterKey, nil, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under key and returns a
// nonce|ciphertext blob. Empty plaintext is valid.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, out...), nil
}

// Decrypt opens a nonce|ciphertext blob produced by Encrypt. Truncated,
// tampered or wrong-key input yields a *DecryptionError.
func Decrypt(data, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(data) < ns {
		return nil, &DecryptionError{Err: errors.New("ciphertext too short")}
	}
	pt, err := gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("invalid key length")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
