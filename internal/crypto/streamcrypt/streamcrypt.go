// Пакет streamcrypt — потоковое симметричное шифрование payload.
//
// Формат зашифрованного потока:
//
//	magic(4) | salt(16) | nonce(24) | XChaCha20(data)
//
// Ключ потока выводится через HKDF-SHA256 из секрета настроек и
// случайной соли, поэтому одинаковый секрет не даёт одинаковых
// keystream для разных файлов. Метаданные (JSON) не шифруются.
package streamcrypt

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLength — минимальная длина секрета шифрования.
	MinSecretLength = 8

	saltSize  = 16
	nonceSize = chacha20.NonceSizeX
	keySize   = chacha20.KeySize

	// HeaderSize — размер заголовка перед шифротекстом.
	HeaderSize = len(magicString) + saltSize + nonceSize

	magicString = "FDC1"
)

var magic = []byte(magicString)

// hkdfInfo — контекст вывода ключа payload.
var hkdfInfo = []byte("filedrop payload v1")

var (
	// ErrSecretTooShort — секрет короче MinSecretLength.
	ErrSecretTooShort = errors.New("streamcrypt: секрет шифрования слишком короткий")
	// ErrBadHeader — поток не начинается с заголовка streamcrypt.
	ErrBadHeader = errors.New("streamcrypt: некорректный заголовок зашифрованного потока")
)

// Key — секрет шифрования payload.
type Key struct {
	secret []byte
}

// NewKey создаёт ключ из секрета настроек (security.encryptionKey).
func NewKey(secret string) (*Key, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	return &Key{secret: []byte(secret)}, nil
}

// EncryptReader возвращает поток «заголовок + шифротекст» поверх r.
// Используется там, где потребитель читает (PutObject в S3).
func (k *Key) EncryptReader(r io.Reader) (io.Reader, error) {
	header, stream, err := k.newHeader()
	if err != nil {
		return nil, err
	}
	return io.MultiReader(bytes.NewReader(header), &cipher.StreamReader{S: stream, R: r}), nil
}

// EncryptWriter пишет заголовок в w и возвращает writer, шифрующий
// всё записанное в него. Используется при записи на диск.
func (k *Key) EncryptWriter(w io.Writer) (io.Writer, error) {
	header, stream, err := k.newHeader()
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("streamcrypt: запись заголовка: %w", err)
	}
	return &cipher.StreamWriter{S: stream, W: w}, nil
}

// DecryptReader читает заголовок из r и возвращает расшифровывающий reader.
func (k *Key) DecryptReader(r io.Reader) (io.Reader, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("streamcrypt: чтение заголовка: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, ErrBadHeader
	}

	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]

	stream, err := k.stream(salt, nonce)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: stream, R: r}, nil
}

// newHeader генерирует соль и nonce и создаёт keystream.
func (k *Key) newHeader() ([]byte, cipher.Stream, error) {
	header := make([]byte, HeaderSize)
	copy(header, magic)
	if _, err := io.ReadFull(rand.Reader, header[len(magic):]); err != nil {
		return nil, nil, fmt.Errorf("streamcrypt: генерация nonce: %w", err)
	}

	salt := header[len(magic) : len(magic)+saltSize]
	nonce := header[len(magic)+saltSize:]

	stream, err := k.stream(salt, nonce)
	if err != nil {
		return nil, nil, err
	}
	return header, stream, nil
}

func (k *Key) stream(salt, nonce []byte) (cipher.Stream, error) {
	subkey := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.secret, salt, hkdfInfo), subkey); err != nil {
		return nil, fmt.Errorf("streamcrypt: вывод ключа: %w", err)
	}

	c, err := chacha20.NewUnauthenticatedCipher(subkey, nonce)
	if err != nil {
		return nil, fmt.Errorf("streamcrypt: инициализация шифра: %w", err)
	}
	return c, nil
}
