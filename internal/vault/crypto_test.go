package vault

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456") // 32 bytes for AES-256
	plaintext := "ipfs://bafy-ward-7-proposal"

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if ciphertext == plaintext {
		t.Fatal("Ciphertext should not be equal to plaintext")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("Expected %s, got %s", plaintext, decrypted)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := []byte("thisis32byteslongsecretkey123456")
	key2 := []byte("another32byteslongsecretkey65432")

	ciphertext, err := Encrypt("Secret message", key1)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	if _, err = Decrypt(ciphertext, key2); err == nil {
		t.Fatal("Decryption should have failed with wrong key")
	}
}

func TestInvalidKeySize(t *testing.T) {
	invalidKey := []byte("shortkey")

	if _, err := Encrypt("test", invalidKey); err == nil {
		t.Fatal("Encryption should fail with invalid key size")
	}

	if _, err := Decrypt("0123456789abcdef", invalidKey); err == nil {
		t.Fatal("Decryption should fail with invalid key size")
	}
}

func TestDecryptMalformedHex(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	if _, err := Decrypt("not-hex", key); err == nil {
		t.Fatal("Decryption should fail with malformed hex")
	}
}

func TestDecryptTooShort(t *testing.T) {
	key := []byte("thisis32byteslongsecretkey123456")
	// The GCM nonce is 12 bytes, so 3 bytes of input cannot hold one.
	if _, err := Decrypt("abcdef", key); err == nil {
		t.Fatal("Decryption should fail with too short ciphertext")
	}
}

func TestSealOpenKey(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	keyHex := KeyToHex(key)

	sealed, err := SealKey(keyHex, "correct horse")
	if err != nil {
		t.Fatalf("SealKey failed: %v", err)
	}
	if strings.Contains(sealed, keyHex) {
		t.Fatal("Sealed key should not contain the plaintext key")
	}

	opened, err := OpenKey(sealed, "correct horse")
	if err != nil {
		t.Fatalf("OpenKey failed: %v", err)
	}
	if opened != keyHex {
		t.Errorf("Expected %s, got %s", keyHex, opened)
	}

	if _, err := OpenKey(sealed, "wrong horse"); err == nil {
		t.Fatal("OpenKey should fail with the wrong passphrase")
	}
}

func TestOpenKeyMalformed(t *testing.T) {
	for _, in := range []string{"", "nocolon", ":abc", "abc:", "zz:abcd"} {
		if _, err := OpenKey(in, "pw"); err == nil {
			t.Errorf("OpenKey(%q) should fail", in)
		}
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("Failed to generate self-signed cert: %v", err)
	}

	if len(cert.Certificate) == 0 {
		t.Fatal("Generated certificate is empty")
	}

	if cert.PrivateKey == nil {
		t.Fatal("Generated private key is nil")
	}
}
