package storage

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/filedrop/internal/token"
)

// Таксономия ошибок провайдеров. Сравнение через errors.Is.
var (
	ErrNotFound            = errors.New("storage: запись не найдена")
	ErrParse               = errors.New("storage: некорректный JSON метаданных")
	ErrExpired             = errors.New("storage: срок хранения истёк")
	ErrMissingToken        = errors.New("storage: токен не указан")
	ErrInvalidBundle       = errors.New("storage: некорректный бандл")
	ErrPathTraversal       = errors.New("storage: путь выходит за пределы хранилища")
	ErrUnsupportedProvider = errors.New("storage: неподдерживаемый провайдер")
)

// IOError — ошибка нижележащего ввода-вывода (файловая система, сеть).
type IOError struct {
	// Op — операция (upload, download, purge, ...)
	Op string
	// Locator — путь или ключ объекта
	Locator string
	Err     error
}

func (e *IOError) Error() string {
	if e.Locator == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO оборачивает err в *IOError; nil остаётся nil.
func WrapIO(op, locator string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Locator: locator, Err: err}
}

// CheckToken проверяет наличие токена.
// Формат не проверяется: выход за пределы хранилища ловит проверка пути.
func CheckToken(tok string) error {
	if tok == "" {
		return ErrMissingToken
	}
	return nil
}

// ParseError оборачивает ошибку разбора JSON.
func ParseError(locator string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParse, locator, err)
}

// IsClientError — ошибки, вызванные входными данными клиента.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrPathTraversal) ||
		errors.Is(err, ErrInvalidBundle) ||
		errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrEmpty)
}

// ErrNoKey — запись зашифрована, а ключ шифрования не настроен.
var ErrNoKey = errors.New("storage: запись зашифрована, ключ шифрования не задан")
