// Пакет token — генерация и проверка непрозрачных идентификаторов
// файлов и бандлов.
//
// Токен файла — 24 случайных байта в base64 RawURL (32 символа),
// идентификатор бандла — UUID v4 (клиентский или серверный).
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FileTokenBytes — длина токена файла в байтах до кодирования.
const FileTokenBytes = 24

// MaxLength — максимальная длина токена, принимаемого от клиента.
const MaxLength = 128

var (
	// ErrEmpty — токен не передан.
	ErrEmpty = errors.New("token: пустой токен")
	// ErrMalformed — токен содержит недопустимые символы или слишком длинный.
	ErrMalformed = errors.New("token: некорректный формат токена")
)

// Generate создаёт криптографически случайный токен файла.
func Generate() (string, error) {
	buf := make([]byte, FileTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: генерация: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewBundleID создаёт идентификатор бандла.
func NewBundleID() string {
	return uuid.NewString()
}

// Validate проверяет, что токен непустой и состоит только из символов
// base64url и дефиса. Не заменяет проверку путей в провайдерах.
func Validate(tok string) error {
	if tok == "" {
		return ErrEmpty
	}
	if len(tok) > MaxLength {
		return ErrMalformed
	}
	for _, r := range tok {
		if !isTokenRune(r) {
			return ErrMalformed
		}
	}
	return nil
}

// ValidateBundleID проверяет идентификатор бандла, присланный клиентом.
// Возвращает каноническую форму UUID.
func ValidateBundleID(id string) (string, error) {
	if id == "" {
		return "", ErrEmpty
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}
	return parsed.String(), nil
}

func isTokenRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_'
}
