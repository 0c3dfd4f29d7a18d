package streamcrypt

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestNewKey_TooShort(t *testing.T) {
	_, err := NewKey("short")
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestWriterReader_RoundTrip(t *testing.T) {
	key, err := NewKey("correct horse battery staple")
	require.NoError(t, err)

	payload := randomPayload(t, 256*1024+17)

	var sealed bytes.Buffer
	w, err := key.EncryptWriter(&sealed)
	require.NoError(t, err)
	_, err = io.Copy(w, bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, len(payload)+HeaderSize, sealed.Len())
	assert.NotEqual(t, payload, sealed.Bytes()[HeaderSize:])

	r, err := key.DecryptReader(&sealed)
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestEncryptReader_MatchesDecrypt(t *testing.T) {
	key, err := NewKey("another-long-secret")
	require.NoError(t, err)

	payload := []byte("отчёт за квартал")
	src, err := key.EncryptReader(bytes.NewReader(payload))
	require.NoError(t, err)

	sealed, err := io.ReadAll(src)
	require.NoError(t, err)

	r, err := key.DecryptReader(bytes.NewReader(sealed))
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestEncrypt_DistinctCiphertexts(t *testing.T) {
	key, err := NewKey("same-secret-twice")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x42}, 64)
	a, _ := key.EncryptReader(bytes.NewReader(payload))
	b, _ := key.EncryptReader(bytes.NewReader(payload))
	sa, _ := io.ReadAll(a)
	sb, _ := io.ReadAll(b)

	assert.NotEqual(t, sa, sb, "соль и nonce должны отличаться")
}

func TestDecrypt_WrongKeyProducesGarbage(t *testing.T) {
	k1, _ := NewKey("first-secret-key")
	k2, _ := NewKey("second-secret-key")

	payload := []byte("секретные данные")
	src, _ := k1.EncryptReader(bytes.NewReader(payload))
	sealed, _ := io.ReadAll(src)

	r, err := k2.DecryptReader(bytes.NewReader(sealed))
	require.NoError(t, err)
	plain, _ := io.ReadAll(r)
	assert.NotEqual(t, payload, plain)
}

func TestDecrypt_BadHeader(t *testing.T) {
	key, _ := NewKey("some-long-secret")

	_, err := key.DecryptReader(bytes.NewReader([]byte("plain text, no header at all, long enough to fill")))
	assert.True(t, errors.Is(err, ErrBadHeader))

	_, err = key.DecryptReader(bytes.NewReader([]byte("FDC1")))
	assert.ErrorIs(t, err, ErrBadHeader)
}
