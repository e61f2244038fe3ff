package crypto

import (
	"errors"

	"github.com/fernet/fernet-go"
)

var (
	// ErrMissingKey means the cipher was constructed without a usable key.
	// This is a deployment problem and must stop startup, not be worked
	// around at call sites.
	ErrMissingKey = errors.New("field encryption key is missing or malformed")

	// ErrIntegrity means a token failed verification: wrong key, tampering,
	// or corruption. Callers must treat this as a hard failure; garbage
	// plaintext is never returned.
	ErrIntegrity = errors.New("ciphertext failed integrity check")
)

// FieldCipher encrypts and decrypts individual PII fields with one
// process-wide Fernet key. The key is injected at construction and immutable
// afterwards; rotation happens offline through [Rotator].
type FieldCipher struct {
	key *fernet.Key
}

func NewFieldCipher(key *fernet.Key) (*FieldCipher, error) {
	if key == nil {
		return nil, ErrMissingKey
	}
	return &FieldCipher{key: key}, nil
}

// NewFieldCipherFromString decodes a base64 Fernet key and builds a cipher
// from it. Used by the rotate-key command where keys arrive as flags.
func NewFieldCipherFromString(encoded string) (*FieldCipher, error) {
	if encoded == "" {
		return nil, ErrMissingKey
	}
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, ErrMissingKey
	}
	return &FieldCipher{key: key}, nil
}

func (c *FieldCipher) Encrypt(plaintext string) ([]byte, error) {
	if c == nil || c.key == nil {
		return nil, ErrMissingKey
	}
	token, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Decrypt returns the plaintext for a token produced by Encrypt. An empty
// input means "no value" and yields the empty string. Tokens are verified
// with no TTL: age never invalidates a stored field.
func (c *FieldCipher) Decrypt(ciphertext []byte) (string, error) {
	if c == nil || c.key == nil {
		return "", ErrMissingKey
	}
	if len(ciphertext) == 0 {
		return "", nil
	}
	plaintext := fernet.VerifyAndDecrypt(ciphertext, 0, []*fernet.Key{c.key})
	if plaintext == nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
