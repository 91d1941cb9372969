// Package crypto provides NaCl secretbox encryption for the control socket's
// line protocol.
//
// A 32-byte symmetric key is derived from the shared token using HKDF-SHA256.
// Every message is encrypted with a random 24-byte nonce prepended to the
// ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
//
// With no token configured the wire layer passes a nil key and messages are
// sent as plain JSON.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var hkdfInfo = []byte("cliptext-v1")

// ErrDecrypt is returned by Open when the ciphertext was not sealed with the
// same key, usually because the two sides hold different tokens.
var ErrDecrypt = errors.New("decryption failed (wrong token?)")

// Key is a secretbox key.
type Key [keySize]byte

// DeriveKey derives a key from a token. Both sides must use the same token
// to derive the same key. An empty token yields a nil key.
func DeriveKey(token string) (*Key, error) {
	if token == "" {
		return nil, nil
	}
	h := hkdf.New(sha256.New, []byte(token), nil, hkdfInfo)
	var key Key
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("key derivation: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext, prepending a random nonce.
func (k *Key) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, (*[keySize]byte)(k)), nil
}

// Open decrypts nonce+ciphertext produced by Seal.
func (k *Key) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, (*[keySize]byte)(k))
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
