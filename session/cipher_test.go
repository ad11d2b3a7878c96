package session

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) string {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.Nil(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := NewCipher(newTestKey(t))
	require.Nil(t, err)

	ciphertext, err := cipher.Encrypt("touchstone-api-key-001")
	require.Nil(t, err)
	assert.NotContains(t, ciphertext, "touchstone-api-key-001")

	plaintext, err := cipher.Decrypt(ciphertext)
	require.Nil(t, err)
	assert.Equal(t, "touchstone-api-key-001", plaintext)
}

func TestCipherNoncesDiffer(t *testing.T) {
	cipher, err := NewCipher(newTestKey(t))
	require.Nil(t, err)
	first, err := cipher.Encrypt("same value")
	require.Nil(t, err)
	second, err := cipher.Encrypt("same value")
	require.Nil(t, err)
	assert.NotEqual(t, first, second)
}

func TestCipherRejectsTampering(t *testing.T) {
	cipher, err := NewCipher(newTestKey(t))
	require.Nil(t, err)
	ciphertext, err := cipher.Encrypt("secret")
	require.Nil(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.Nil(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = cipher.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.NotNil(t, err)
}

func TestNewCipherValidation(t *testing.T) {
	testCases := []struct {
		description string
		key         string
	}{
		{description: "not base64", key: "%%%"},
		{description: "wrong length", key: base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, testCase := range testCases {
		_, err := NewCipher(testCase.key)
		assert.NotNil(t, err, testCase.description)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	sess := &Session{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, sess.Expired(now))
	assert.True(t, sess.Expired(now.Add(time.Hour)))
	assert.True(t, sess.Expired(now.Add(2*time.Hour)))
}
