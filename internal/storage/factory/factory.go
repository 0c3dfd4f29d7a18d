// Пакет factory — выбор активного провайдера хранилища.
//
// Get читает текущие настройки при каждом вызове и ничего не кэширует:
// изменение storage.location применяется к следующей операции
// без перезапуска.
package factory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/settings"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/local"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/objectstore"
)

// Factory создаёт провайдер по текущим настройкам.
type Factory struct {
	source settings.Source
	now    func() time.Time
	logger *slog.Logger
}

// New создаёт фабрику поверх источника настроек.
func New(source settings.Source, logger *slog.Logger) *Factory {
	return &Factory{source: source, now: time.Now, logger: logger}
}

// WithClock задаёт часы, передаваемые провайдерам (для тестов).
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now
	return f
}

// Settings возвращает текущий снимок настроек.
func (f *Factory) Settings() *settings.Settings {
	return f.source.Current()
}

// Get возвращает провайдер для текущего storage.location.
// Неизвестное значение — storage.ErrUnsupportedProvider.
func (f *Factory) Get() (storage.Provider, error) {
	s := f.source.Current()

	key, err := s.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("ключ шифрования: %w", err)
	}

	switch s.Storage.Location {
	case "", storage.LocationLocal:
		return local.New(s.Storage.LocalStoragePath,
			local.WithKey(key),
			local.WithClock(f.now),
			local.WithLogger(f.logger),
		), nil

	case storage.LocationS3:
		p, err := objectstore.New(objectstore.Config{
			Endpoint:  s.Storage.S3.Endpoint,
			AccessKey: s.Storage.S3.AccessKey,
			SecretKey: s.Storage.S3.SecretKey,
			Bucket:    s.Storage.S3.Bucket,
			Region:    s.Storage.S3.Region,
			UseSSL:    s.Storage.S3.UseSSL,
		},
			objectstore.WithKey(key),
			objectstore.WithClock(f.now),
			objectstore.WithLogger(f.logger),
		)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedProvider, s.Storage.Location)
	}
}
