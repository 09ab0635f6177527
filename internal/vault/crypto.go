// Package vault provides the security primitives of the ledger: AES-GCM sealing of signing keys,
// wallet-style message signatures and TLS certificate generation.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Encrypt seals plaintext with a 32-byte key and returns the nonce-prefixed ciphertext as hex.
func Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Prepend the nonce so Decrypt can find it.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt takes the hex string and the 32-byte key to return the original text.
func Decrypt(cipherHex string, key []byte) (string, error) {
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", errors.New("decryption failed (wrong key or tampered data)")
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// scrypt parameters for key files.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	saltSize     = 16
	derivedBytes = 32
)

// DeriveKey stretches a passphrase into a 32-byte AES key.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, derivedBytes)
}

// SealKey encrypts a hex-encoded private key under passphrase.
// The result is "<salt-hex>:<ciphertext-hex>".
func SealKey(privateKeyHex, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	sealed, err := Encrypt(privateKeyHex, key)
	if err != nil {
		return "", fmt.Errorf("seal key: %w", err)
	}
	return hex.EncodeToString(salt) + ":" + sealed, nil
}

// OpenKey reverses SealKey.
func OpenKey(sealed, passphrase string) (string, error) {
	saltHex, body, ok := strings.Cut(sealed, ":")
	if !ok || saltHex == "" || body == "" {
		return "", errors.New("open key: malformed key file")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("open key: salt: %w", err)
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	plain, err := Decrypt(body, key)
	if err != nil {
		return "", fmt.Errorf("open key: %w", err)
	}
	return plain, nil
}
