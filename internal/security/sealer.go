package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrUnseal = errors.New("sealed value cannot be opened")

// Sealer encrypts values persisted on behalf of a device so tokens are not
// stored in the clear.
type Sealer struct {
	key [32]byte
}

func NewSealer(secret string, purpose string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("empty sealing secret")
	}

	var key [32]byte
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("sharp/"+purpose))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnseal
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}
