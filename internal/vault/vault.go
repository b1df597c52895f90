// Package vault encrypts provider tokens at rest and issues OAuth state tokens.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

// ErrTokenIntegrity is returned when a ciphertext is malformed or its
// authentication tag does not verify.
var ErrTokenIntegrity = eris.New("vault: token integrity check failed")

// Vault performs AES-256-GCM encryption of tokens. Output is
// hex(iv):hex(tag):hex(ciphertext), so decryption needs only the key.
type Vault struct {
	aead  cipher.AEAD
	nonce io.Reader
}

// New creates a Vault from a 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != keySize {
		return nil, eris.Errorf("vault: key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, eris.Wrap(err, "vault: new cipher")
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, eris.Wrap(err, "vault: new gcm")
	}
	return &Vault{aead: aead, nonce: rand.Reader}, nil
}

// NewFromHex creates a Vault from a hex-encoded key.
func NewFromHex(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, eris.Wrap(err, "vault: decode key")
	}
	return New(key)
}

// Encrypt seals plaintext under a fresh random IV.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	iv := make([]byte, nonceSize)
	if _, err := io.ReadFull(v.nonce, iv); err != nil {
		return "", eris.Wrap(err, "vault: generate iv")
	}

	sealed := v.aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any malformed envelope or
// failed tag check yields ErrTokenIntegrity.
func (v *Vault) Decrypt(ciphertext string) ([]byte, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return nil, eris.Wrap(ErrTokenIntegrity, "vault: expected 3 segments")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != nonceSize {
		return nil, eris.Wrap(ErrTokenIntegrity, "vault: bad iv")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, eris.Wrap(ErrTokenIntegrity, "vault: bad tag")
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, eris.Wrap(ErrTokenIntegrity, "vault: bad ciphertext")
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := v.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, eris.Wrap(ErrTokenIntegrity, "vault: open")
	}
	return plain, nil
}

// EncryptString is Encrypt for string tokens.
func (v *Vault) EncryptString(s string) (string, error) {
	return v.Encrypt([]byte(s))
}

// DecryptString is Decrypt for string tokens.
func (v *Vault) DecryptString(s string) (string, error) {
	b, err := v.Decrypt(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
