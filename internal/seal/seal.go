// Package seal encrypts state payloads into opaque blobs before they leave
// the node. Sealing gives confidentiality only; it makes no integrity claims
// about what peers gossip back.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a sealing key.
const KeySize = chacha20poly1305.KeySize

// ErrShortPayload is returned by Open when the blob cannot hold a nonce.
var ErrShortPayload = errors.New("sealed payload too short")

// DeriveKey derives the per-record key from the node id, the entropy level
// at sealing time and the node's record nonce.
func DeriveKey(peerID string, level float64, nonce uint64) []byte {
	h := sha256.New()
	h.Write([]byte(peerID))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(level))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])

	return h.Sum(nil)
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under key.
// The output is the 24-byte random nonce followed by the ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	return aead.Seal(out, out[:aead.NonceSize()], plaintext, nil), nil
}

// Open reverses Seal.
func Open(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrShortPayload
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}
