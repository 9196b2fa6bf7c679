package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKeyLength   = errors.New("credentials key must decode to 32 bytes")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// Encrypt seals plaintext with XChaCha20-Poly1305 and returns base64(nonce || ciphertext).
func Encrypt(plaintext string, key []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", ErrInvalidKeyLength
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertextBase64 string, key []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", ErrInvalidKeyLength
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertextTooShort
	}

	nonce, data := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// EncryptString encrypts with the key configured in EXCHANGE_CREDENTIALS_KEY.
func EncryptString(plaintext string) (string, error) {
	key, err := configuredKey()
	if err != nil {
		return "", err
	}
	return Encrypt(plaintext, key)
}

// DecryptString decrypts with the key configured in EXCHANGE_CREDENTIALS_KEY.
func DecryptString(ciphertextBase64 string) (string, error) {
	key, err := configuredKey()
	if err != nil {
		return "", err
	}
	return Decrypt(ciphertextBase64, key)
}

func configuredKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(GetConfig().ExchangeCRKey)
	if err != nil {
		return nil, fmt.Errorf("decode EXCHANGE_CREDENTIALS_KEY: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeyLength
	}
	return key, nil
}
