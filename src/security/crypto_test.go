package security

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptStringUsesConfiguredKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", key)

	sealed, err := EncryptString("broker-api-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "broker-api-key")

	plain, err := DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "broker-api-key", plain)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)

	a, err := Encrypt("same", key)
	require.NoError(t, err)
	b, err := Encrypt("same", key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTamperedOrForeignCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)
	other := bytes.Repeat([]byte{2}, 32)

	sealed, err := Encrypt("secret", key)
	require.NoError(t, err)

	_, err = Decrypt(sealed, other)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	_, err = Decrypt(base64.StdEncoding.EncodeToString(raw), key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = Decrypt("%%%", key)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = Decrypt(base64.StdEncoding.EncodeToString([]byte("short")), key)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := Encrypt("x", []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	t.Setenv("EXCHANGE_CREDENTIALS_KEY", base64.StdEncoding.EncodeToString([]byte("too-short")))
	_, err = EncryptString("x")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
