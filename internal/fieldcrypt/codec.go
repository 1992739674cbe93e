// Package fieldcrypt encrypts personal fields at rest and derives the
// deterministic search hashes stored next to them.
//
// A Codec is built once at process start from the FIELD_ENCRYPTION_KEY
// secret and handed to whatever needs to read or write confidential
// columns.  There is no package-level instance.
package fieldcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of the raw key in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrDecryption is matched by every *DecryptionError.
var ErrDecryption = errors.New("fieldcrypt: decryption failed")

// ErrKeySize is returned when a key is not exactly KeySize bytes.
var ErrKeySize = fmt.Errorf("fieldcrypt: key must be %d bytes", KeySize)

// DecryptionError reports a ciphertext that could not be opened with the
// configured key: it was corrupted, truncated, or written under another key.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return "fieldcrypt: decryption failed: " + e.Reason
}

// Is lets errors.Is(err, ErrDecryption) match any DecryptionError.
func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// Codec performs XChaCha20-Poly1305 encryption of short text fields.
// It is safe for concurrent use.
type Codec struct {
	key []byte
}

// New builds a codec from a raw 32 byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// NewFromBase64 decodes a base64 key (URL-safe or standard alphabet, padded
// or not) and builds a codec from it.
func NewFromBase64(s string) (*Codec, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding,
		base64.StdEncoding, base64.RawStdEncoding,
	} {
		if key, err := enc.DecodeString(s); err == nil {
			return New(key)
		}
	}
	return nil, fmt.Errorf("fieldcrypt: key is not valid base64")
}

// Encrypt returns the base64url text form of nonce||ciphertext.  An empty
// plaintext encrypts to an empty string.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.  An empty ciphertext decrypts to an empty
// string.  Anything that cannot be opened yields a *DecryptionError; the
// ciphertext is never handed back as if it were plaintext.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed encoding"}
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", &DecryptionError{Reason: "ciphertext too short"}
	}
	nonce, body := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed"}
	}
	return string(plain), nil
}

// Hash returns the lowercase hex SHA-256 of the trimmed, lowercased input.
// Equal inputs modulo case and surrounding whitespace hash identically.
// The hash is unsalted so that it can be used as an equality index.
func (c *Codec) Hash(plaintext string) string {
	return Hash(plaintext)
}

// Hash is the key-independent form of Codec.Hash.
func Hash(plaintext string) string {
	norm := strings.ToLower(strings.TrimSpace(plaintext))
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
