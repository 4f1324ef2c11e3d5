package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sponsorbridge/backend/internal/apperr"
)

// FieldCipher provides authenticated encryption for sensitive columns
// (creative text, creative media URL, escrow key material).
// Wire format: hex(iv):hex(tag):hex(ciphertext).
type FieldCipher struct {
	aead cipher.AEAD
}

func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be 32 bytes, got %d", apperr.ErrValidation, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead}, nil
}

func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	// GCM appends the 16-byte tag to the ciphertext; split it out so the
	// stored format stays iv:tag:ciphertext.
	tagStart := len(sealed) - 16
	ct, tag := sealed[:tagStart], sealed[tagStart:]

	return fmt.Sprintf("%s:%s:%s", hex.EncodeToString(iv), hex.EncodeToString(tag), hex.EncodeToString(ct)), nil
}

func (c *FieldCipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: malformed encrypted field", apperr.ErrAuth)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv", apperr.ErrAuth)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad tag", apperr.ErrAuth)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", apperr.ErrAuth)
	}

	plain, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: tag verification failed", apperr.ErrAuth)
	}
	return string(plain), nil
}
