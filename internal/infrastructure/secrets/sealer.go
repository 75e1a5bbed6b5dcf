// Package secrets seals credentials before they are written to the database.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "sb1:"
)

var (
	ErrInvalidKey    = errors.New("secrets: key must be 32 bytes, base64 encoded")
	ErrMalformed     = errors.New("secrets: malformed sealed value")
	ErrDecryptFailed = errors.New("secrets: sealed value could not be opened")
)

// Codec seals and opens string secrets
type Codec interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Sealer encrypts values with NaCl secretbox.
// Sealed values are "sb1:" followed by base64(nonce || box).
type Sealer struct {
	key [keySize]byte
}

var _ Codec = (*Sealer)(nil)

// NewSealer creates a sealer from a base64 encoded 32-byte key
func NewSealer(encodedKey string) (*Sealer, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext. Empty strings stay empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return prefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a sealed value. Values without the sealed prefix are
// returned unchanged so rows written before sealing was enabled still load.
func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return sealed, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(out), nil
}

// Plaintext is a Codec that stores values as-is
type Plaintext struct{}

var _ Codec = Plaintext{}

func (Plaintext) Seal(plaintext string) (string, error) { return plaintext, nil }

func (Plaintext) Open(sealed string) (string, error) { return sealed, nil }

// GenerateKey returns a new random base64 encoded key
func GenerateKey() (string, error) {
	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}
