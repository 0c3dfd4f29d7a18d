// Пакет errors — ответы с ошибками в едином формате filedrop.
// Формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // имя пакета совпадает со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// Коды ошибок HTTP API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeNotAvailable    = "NOT_AVAILABLE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// MessageNotAvailable — единое сообщение для отсутствующих и истёкших записей.
const MessageNotAvailable = "Файл больше недоступен"

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// Заголовки скачивания, выставленные до ошибки, удаляются.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	h := w.Header()
	h.Del("Content-Disposition")
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// InvalidToken — 400 некорректный или отсутствующий токен.
func InvalidToken(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidToken, message)
}

// NotAvailable — 404 запись не найдена или истекла.
func NotAvailable(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, CodeNotAvailable, MessageNotAvailable)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// WriteStorageError отображает ошибку хранилища в HTTP-ответ.
// Клиенту не передаются пути и детали файловой системы.
func WriteStorageError(w http.ResponseWriter, err error) {
	var ioErr *storage.IOError

	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrExpired):
		NotAvailable(w)
	case errors.Is(err, storage.ErrParse):
		ValidationError(w, "Некорректная запись метаданных")
	case errors.Is(err, storage.ErrInvalidBundle):
		ValidationError(w, "Некорректный бандл")
	case storage.IsClientError(err):
		InvalidToken(w, "Некорректный токен")
	case errors.Is(err, storage.ErrUnsupportedProvider):
		InternalError(w, "Хранилище не настроено")
	case errors.As(err, &ioErr):
		WriteError(w, http.StatusBadGateway, CodeUpstreamError, "Ошибка хранилища")
	default:
		InternalError(w, "Внутренняя ошибка")
	}
}
