package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 310_000
	// Context string for key derivation. The session secret is the only
	// key material; this salt just separates the cipher key from other
	// uses of the same secret (JWT signing).
	keyDerivationContext = "llmail.provider-token-encryption.v1"
)

// tokenCipher encrypts provider tokens before they are embedded in the
// session JWT. The AES-256-GCM key is derived once at construction; PBKDF2
// is far too slow to run per request.
type tokenCipher struct {
	gcm cipher.AEAD
}

func newTokenCipher(secret string) (*tokenCipher, error) {
	key := pbkdf2.Key([]byte(secret), []byte(keyDerivationContext), pbkdf2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &tokenCipher{gcm: gcm}, nil
}

// encrypt seals plaintext and returns it as iv:authTag:ciphertext (all hex).
func (c *tokenCipher) encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate IV: %w", err)
	}

	ciphertext := c.gcm.Seal(nil, iv, []byte(plaintext), nil)

	// GCM appends auth tag to ciphertext, split it out
	tagSize := c.gcm.Overhead()
	authTag := ciphertext[len(ciphertext)-tagSize:]
	encrypted := ciphertext[:len(ciphertext)-tagSize]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(iv),
		hex.EncodeToString(authTag),
		hex.EncodeToString(encrypted),
	), nil
}

func (c *tokenCipher) decrypt(encryptedStr string) (string, error) {
	parts := strings.Split(encryptedStr, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode IV: %w", err)
	}
	authTag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode auth tag: %w", err)
	}
	encrypted, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	// Reconstruct ciphertext with appended auth tag (as GCM expects)
	ciphertextWithTag := append(encrypted, authTag...)
	plaintext, err := c.gcm.Open(nil, iv, ciphertextWithTag, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}
