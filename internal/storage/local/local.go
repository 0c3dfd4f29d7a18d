// Пакет local — провайдер хранилища на локальной файловой системе.
//
// Раскладка корня: для файла с токеном T — T.binary (payload, возможно
// зашифрованный) и T.json (FileContext); для бандла B — B.json.
// Провайдер не хранит состояния, кроме корня и ключа шифрования:
// каждая операция заново читает метаданные с диска.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/crypto/streamcrypt"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/retention"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/attr"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/filestore"
)

// Provider — LocalFileStorage.
type Provider struct {
	files  *filestore.FileStore
	key    *streamcrypt.Key
	now    func() time.Time
	logger *slog.Logger
}

// Option — опция конструктора Provider.
type Option func(*Provider)

// WithKey включает шифрование payload при загрузке.
// Чтение расшифровывает по флагу записи, независимо от этой опции.
func WithKey(key *streamcrypt.Key) Option {
	return func(p *Provider) { p.key = key }
}

// WithClock задаёт источник текущего времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New создаёт провайдер с корнем root.
func New(root string, opts ...Option) *Provider {
	p := &Provider{
		files:  filestore.New(root),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "local_storage"))
	return p
}

var (
	_ storage.Provider      = (*Provider)(nil)
	_ storage.PayloadSource = (*Provider)(nil)
	_ storage.Pinger        = (*Provider)(nil)
	_ storage.OrphanLister  = (*Provider)(nil)
)

// Name возвращает имя провайдера.
func (p *Provider) Name() string {
	return storage.LocationLocal
}

// Root возвращает корень хранилища.
func (p *Provider) Root() string {
	return p.files.Root()
}

// jsonPath разрешает путь sidecar токена с проверкой выхода за корень.
func (p *Provider) jsonPath(token string) (string, error) {
	if err := storage.CheckToken(token); err != nil {
		return "", err
	}
	return p.files.Resolve(token + attr.Suffix)
}

// GetJSON загружает метаданные файла или бандла.
func (p *Provider) GetJSON(ctx context.Context, token string) (*model.Metadata, error) {
	path, err := p.jsonPath(token)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return attr.Read(path)
}

// Upload сохраняет payload из src.Path, затем sidecar.
// Ошибка записи sidecar возвращается, payload при этом не откатывается.
func (p *Provider) Upload(ctx context.Context, src storage.UploadedFile, fc *model.FileContext) (*model.FileContext, error) {
	if fc == nil {
		return nil, fmt.Errorf("local: upload: пустой контекст файла")
	}
	jsonPath, err := p.jsonPath(fc.ID)
	if err != nil {
		return nil, err
	}
	payloadPath, err := p.files.PayloadPath(fc.ID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.files.EnsureRoot(); err != nil {
		return nil, storage.WrapIO("upload", p.files.Root(), err)
	}

	in, err := os.Open(src.Path)
	if err != nil {
		return nil, storage.WrapIO("upload", src.Path, err)
	}
	defer in.Close()

	size, err := p.files.Save(in, payloadPath, p.key)
	if err != nil {
		return nil, storage.WrapIO("upload", payloadPath, err)
	}

	out := *fc
	out.Size = size
	out.Path = payloadPath
	out.JSONPath = jsonPath
	out.Key = ""
	out.Encrypted = p.key != nil

	// Метаданные строго после payload
	if err := attr.Write(jsonPath, &out); err != nil {
		p.logger.Error("Payload сохранён, но запись метаданных не удалась",
			slog.String("token", out.ID),
			slog.String("error", err.Error()),
		)
		return nil, storage.WrapIO("upload", jsonPath, err)
	}

	p.logger.Debug("Файл сохранён",
		slog.String("token", out.ID),
		slog.Int64("size", out.Size),
		slog.Bool("encrypted", out.Encrypted),
	)
	return &out, nil
}

// Bundle сохраняет запись бандла.
func (p *Provider) Bundle(ctx context.Context, b *model.Bundle) error {
	if b == nil {
		return storage.ErrInvalidBundle
	}
	path, err := p.jsonPath(b.ID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.files.EnsureRoot(); err != nil {
		return storage.WrapIO("bundle", p.files.Root(), err)
	}
	if err := attr.Write(path, b); err != nil {
		return storage.WrapIO("bundle", path, err)
	}
	return nil
}

// Download отдаёт payload файла в sink, расшифровывая при необходимости.
func (p *Provider) Download(ctx context.Context, token string, sink storage.Sink) error {
	return storage.Download(ctx, p, token, sink, p.now())
}

// Archive отдаёт zip со всеми файлами бандла.
func (p *Provider) Archive(ctx context.Context, token string, sink storage.Sink) error {
	return storage.Archive(ctx, p, token, sink, p.now())
}

// CheckLocator проверяет пути sidecar и payload токена.
func (p *Provider) CheckLocator(token string) error {
	if _, err := p.jsonPath(token); err != nil {
		return err
	}
	_, err := p.files.PayloadPath(token)
	return err
}

// OpenPayload открывает payload токена и оборачивает его расшифровкой,
// если запись зашифрована.
func (p *Provider) OpenPayload(_ context.Context, token string, fc *model.FileContext) (io.ReadCloser, error) {
	path, err := p.files.PayloadPath(token)
	if err != nil {
		return nil, err
	}
	if fc.Encrypted && p.key == nil {
		return nil, storage.WrapIO("decrypt", token, storage.ErrNoKey)
	}

	f, err := p.files.Open(path)
	if err != nil {
		return nil, err
	}
	if !fc.Encrypted {
		return f, nil
	}

	r, err := p.key.DecryptReader(f)
	if err != nil {
		f.Close()
		return nil, storage.WrapIO("decrypt", token, err)
	}
	return storage.ReadCloser(r, f), nil
}

// Purge удаляет все истёкшие записи.
// Для файла удаляются payload и sidecar, для бандла только sidecar.
// Ошибка одной записи логируется и не прерывает обход.
func (p *Provider) Purge(ctx context.Context) ([]string, error) {
	now := p.now()

	records, err := attr.ScanDir(p.files.Root(), func(path string, err error) {
		p.logger.Warn("Пропуск невалидной записи метаданных",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		return nil, storage.WrapIO("purge", p.files.Root(), err)
	}

	var deleted []string
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if !retention.IsExpired(rec.Meta.Expires(), now) {
			continue
		}

		locator, err := p.purgeRecord(rec)
		if err != nil {
			p.logger.Error("Ошибка удаления истёкшей записи",
				slog.String("path", rec.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted = append(deleted, locator)
	}

	return deleted, nil
}

// purgeRecord удаляет одну запись; токен берётся из имени sidecar,
// а не из его содержимого.
func (p *Provider) purgeRecord(rec attr.Record) (string, error) {
	if rec.Meta.Kind == model.KindBundle {
		if err := attr.Delete(rec.Path); err != nil {
			return "", err
		}
		return rec.Path, nil
	}

	payload, err := p.files.PayloadPath(attr.TokenFromPath(rec.Path))
	if err != nil {
		return "", err
	}
	if err := p.files.Delete(payload); err != nil {
		return "", err
	}
	if err := attr.Delete(rec.Path); err != nil {
		return "", err
	}
	return payload, nil
}

// Orphans возвращает токены payload-файлов без sidecar.
// Такие файлы появляются, если запись метаданных при загрузке не удалась.
func (p *Provider) Orphans(ctx context.Context) ([]string, error) {
	tokens, err := p.files.ListPayloads()
	if err != nil {
		return nil, storage.WrapIO("reconcile", p.files.Root(), err)
	}

	var orphans []string
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return orphans, err
		}
		path, err := p.files.Resolve(tok + attr.Suffix)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			orphans = append(orphans, tok)
		}
	}
	return orphans, nil
}

// Ping проверяет, что корень хранилища доступен на запись.
func (p *Provider) Ping(_ context.Context) error {
	if err := p.files.Writable(); err != nil {
		return storage.WrapIO("ping", p.files.Root(), err)
	}
	return nil
}
