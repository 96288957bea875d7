package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

// sampleToken has the shape of a Google OAuth refresh token.
const sampleToken = "1//0gLr3kXq9vB2wCgYIARAAGBASNwF-L9IrWm4TPyb8xGzH5kQdV7J2aUuNcE1fRtYoP6sDqZvKj0bMhX4nWl8eCi"

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	encryptor, err := NewEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}
	return encryptor
}

func TestNewEncryptor(t *testing.T) {
	t.Run("valid 256-bit key", func(t *testing.T) {
		encryptor, err := NewEncryptor(base64.StdEncoding.EncodeToString(make([]byte, 32)))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if encryptor == nil {
			t.Fatal("Expected encryptor, got nil")
		}
	})

	t.Run("key is not base64", func(t *testing.T) {
		if _, err := NewEncryptor("not-valid-base64!!!"); err == nil {
			t.Fatal("Expected error for invalid base64, got nil")
		}
	})

	t.Run("key too short", func(t *testing.T) {
		if _, err := NewEncryptor(base64.StdEncoding.EncodeToString(make([]byte, 16))); err == nil {
			t.Fatal("Expected error for 128-bit key, got nil")
		}
	})
}

func TestTokenRoundTrip(t *testing.T) {
	encryptor := newTestEncryptor(t)

	testCases := []struct {
		name  string
		token string
	}{
		{"refresh token", sampleToken},
		{"token with url-safe characters", "1//0e-Ab_cD~fGh.iJk"},
		{"empty token", ""},
		{"very long token", sampleToken + strings.Repeat("x", 4096)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := encryptor.Encrypt(tc.token)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if strings.Contains(string(sealed), tc.token) && tc.token != "" {
				t.Error("Ciphertext contains the token in the clear")
			}

			token, err := encryptor.Decrypt(sealed)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if token != tc.token {
				t.Errorf("Expected %q, got %q", tc.token, token)
			}
		})
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	encryptor := newTestEncryptor(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sealed, err := encryptor.Encrypt(sampleToken)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[string(sealed)] {
			t.Fatal("Two encryptions of the same token produced identical ciphertexts")
		}
		seen[string(sealed)] = true
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	sealed, err := newTestEncryptor(t).Encrypt(sampleToken)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := newTestEncryptor(t).Decrypt(sealed); err == nil {
		t.Error("Expected error decrypting with a different key, got nil")
	}
}

func TestDecryptRejectsInvalidCiphertext(t *testing.T) {
	encryptor := newTestEncryptor(t)

	t.Run("shorter than a nonce", func(t *testing.T) {
		if _, err := encryptor.Decrypt([]byte("stub")); err == nil {
			t.Error("Expected error for truncated ciphertext, got nil")
		}
	})

	t.Run("flipped payload byte", func(t *testing.T) {
		sealed, err := encryptor.Encrypt(sampleToken)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		sealed[len(sealed)-1] ^= 0x01

		if _, err := encryptor.Decrypt(sealed); err == nil {
			t.Error("Expected error for tampered ciphertext, got nil")
		}
	})

	t.Run("flipped nonce byte", func(t *testing.T) {
		sealed, err := encryptor.Encrypt(sampleToken)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		sealed[0] ^= 0x01

		if _, err := encryptor.Decrypt(sealed); err == nil {
			t.Error("Expected error for tampered nonce, got nil")
		}
	})
}
