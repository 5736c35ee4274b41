package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sellergate/sellergate_api/internal/utils"
)

// kdf parameters for deriving the 32-byte AES key from the configured
// secret. The salt is fixed because the secret itself is the only
// long-lived input; rotating the secret rotates the key.
const (
	kdfIterations = 4096
	kdfSalt       = "sellergate-credential-store"
)

// CredentialCipher encrypts and decrypts marketplace API credentials at
// rest using AES-256-CBC. Stored format is "ivHex:cipherHex".
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher derives the process-wide encryption key from the
// configured secret. An empty secret is rejected up front.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty encryption secret", utils.ErrInvalidKeyMaterial)
	}
	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, 32, sha256.New)
	return &CredentialCipher{key: key}, nil
}

// Encrypt encrypts plaintext and returns "ivHex:cipherHex".
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidKeyMaterial, err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Malformed input (missing separator, bad hex,
// truncated ciphertext, bad padding) yields ErrInvalidKeyMaterial rather
// than a panic so a corrupt row never takes the process down.
func (c *CredentialCipher) Decrypt(stored string) (string, error) {
	ivHex, cipherHex, ok := strings.Cut(stored, ":")
	if !ok {
		return "", fmt.Errorf("%w: missing iv separator", utils.ErrInvalidKeyMaterial)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: bad iv", utils.ErrInvalidKeyMaterial)
	}
	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad ciphertext", utils.ErrInvalidKeyMaterial)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidKeyMaterial, err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidKeyMaterial, err)
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
