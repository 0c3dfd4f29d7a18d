// Пакет storage — контракт провайдера хранилища filedrop.
//
// Провайдер владеет физическим представлением payload и JSON-метаданных.
// Реализации: local (файловая система) и objectstore (S3-совместимое
// хранилище). Все операции блокирующие и принимают context.Context;
// асинхронность обеспечивает вызывающий код (горутина на запрос).
package storage

import (
	"context"
	"net/http"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
)

// Имена провайдеров в настройке storage.location.
const (
	LocationLocal = "local"
	LocationS3    = "s3"
)

// Sink — приёмник ответа: заголовки выставляются до первой записи.
// http.ResponseWriter удовлетворяет интерфейсу.
type Sink interface {
	Header() http.Header
	Write(p []byte) (int, error)
}

// UploadedFile — временный файл, принятый слоем разбора multipart.
type UploadedFile struct {
	// Path — путь к временному файлу на диске
	Path string
	Name string
	Size int64
	Type string
	// LastModifiedDate — значение клиента, передаётся как есть
	LastModifiedDate string
}

// Provider — контракт бэкенда хранилища.
type Provider interface {
	// Name возвращает имя провайдера (local, s3).
	Name() string

	// GetJSON загружает метаданные файла или бандла по токену.
	// Ошибки: ErrMissingToken, ErrPathTraversal, ErrNotFound, ErrParse, *IOError.
	GetJSON(ctx context.Context, token string) (*model.Metadata, error)

	// Upload сохраняет payload из src и затем метаданные fc.
	// Метаданные пишутся строго после успешной записи payload.
	Upload(ctx context.Context, src UploadedFile, fc *model.FileContext) (*model.FileContext, error)

	// Bundle сохраняет запись бандла по его ID.
	Bundle(ctx context.Context, b *model.Bundle) error

	// Archive отдаёт zip со всеми файлами бандла в sink.
	Archive(ctx context.Context, token string, sink Sink) error

	// Download отдаёт payload одного файла в sink.
	Download(ctx context.Context, token string, sink Sink) error

	// Purge удаляет все истёкшие записи и возвращает их локаторы.
	// Ошибка одной записи не прерывает обход.
	Purge(ctx context.Context) ([]string, error)
}

// Pinger — провайдер, умеющий проверить доступность бэкенда (readiness).
type Pinger interface {
	Ping(ctx context.Context) error
}

// OrphanLister — провайдер, умеющий найти payload без метаданных.
type OrphanLister interface {
	Orphans(ctx context.Context) ([]string, error)
}
