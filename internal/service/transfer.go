// Пакет service — бизнес-логика filedrop.
// transfer.go — оркестрация загрузки, бандлов, скачивания и архивов
// поверх активного провайдера хранилища.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/api/middleware"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/retention"
	"github.com/bigkaa/goartstore/filedrop/internal/settings"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
	"github.com/bigkaa/goartstore/filedrop/internal/token"
)

// ProviderSource — источник активного провайдера и настроек.
// Реализуется factory.Factory.
type ProviderSource interface {
	Get() (storage.Provider, error)
	Settings() *settings.Settings
}

// MaxBundleFiles — максимальное число файлов в бандле. Архив открывает
// все файлы бандла одновременно.
const MaxBundleFiles = 256

// BundleRequest — запрос на финализацию бандла.
type BundleRequest struct {
	// ID — идентификатор от клиента (UUID) или пустой
	ID    string             `json:"id,omitempty"`
	Files []model.BundleFile `json:"files"`
}

// TransferService — загрузка и выдача файлов.
type TransferService struct {
	providers ProviderSource
	now       func() time.Time
	logger    *slog.Logger
}

// NewTransferService создаёт сервис.
func NewTransferService(providers ProviderSource, logger *slog.Logger) *TransferService {
	return &TransferService{
		providers: providers,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "transfer")),
	}
}

// observe обновляет метрику операции.
func observe(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	middleware.OperationsTotal.WithLabelValues(operation, result).Inc()
}

// Upload строит FileContext для загруженного временного файла
// и сохраняет его через активный провайдер. Временный файл удаляется
// в любом случае.
func (s *TransferService) Upload(ctx context.Context, src storage.UploadedFile) (fc *model.FileContext, err error) {
	defer func() { observe("upload", err) }()
	defer func() {
		if rmErr := os.Remove(src.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("Не удалось удалить временный файл",
				slog.String("path", src.Path),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	provider, err := s.providers.Get()
	if err != nil {
		return nil, err
	}
	cfg := s.providers.Settings()

	expires, err := retention.ComputeExpiry(cfg.General.Retention, cfg.General.RetentionUnit, s.now())
	if err != nil {
		return nil, fmt.Errorf("срок хранения: %w", err)
	}

	id, err := token.Generate()
	if err != nil {
		return nil, err
	}

	ctxFile := &model.FileContext{
		ID:               id,
		Name:             cleanName(src.Name),
		Size:             src.Size,
		Type:             DetectContentType(src),
		LastModifiedDate: src.LastModifiedDate,
		Expires:          expires,
	}

	fc, err = provider.Upload(ctx, src, ctxFile)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Файл загружен",
		slog.String("provider", provider.Name()),
		slog.String("token", fc.ID),
		slog.String("filename", fc.Name),
		slog.Int64("size", fc.Size),
		slog.String("expires", fc.Expires.String()),
	)
	return fc, nil
}

// FinalizeBundle сохраняет запись бандла после загрузки всех файлов.
// Каждый файл бандла должен быть уже сохранён, иначе ErrInvalidBundle.
func (s *TransferService) FinalizeBundle(ctx context.Context, req BundleRequest) (b *model.Bundle, err error) {
	defer func() { observe("bundle", err) }()

	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: пустой список файлов", storage.ErrInvalidBundle)
	}
	if len(req.Files) > MaxBundleFiles {
		return nil, fmt.Errorf("%w: больше %d файлов", storage.ErrInvalidBundle, MaxBundleFiles)
	}

	id := token.NewBundleID()
	if req.ID != "" {
		id, err = token.ValidateBundleID(req.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: id бандла: %v", storage.ErrInvalidBundle, err)
		}
	}

	provider, err := s.providers.Get()
	if err != nil {
		return nil, err
	}
	cfg := s.providers.Settings()

	files := make([]model.BundleFile, 0, len(req.Files))
	for _, f := range req.Files {
		meta, err := provider.GetJSON(ctx, f.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrParse) {
				return nil, fmt.Errorf("%w: файл %s не сохранён", storage.ErrInvalidBundle, f.ID)
			}
			return nil, err
		}
		if meta.Kind != model.KindFile {
			return nil, fmt.Errorf("%w: %s не является файлом", storage.ErrInvalidBundle, f.ID)
		}
		name := f.Name
		if name == "" {
			name = meta.File.Name
		}
		files = append(files, model.BundleFile{ID: f.ID, Name: name})
	}

	expires, err := retention.ComputeExpiry(cfg.General.Retention, cfg.General.RetentionUnit, s.now())
	if err != nil {
		return nil, fmt.Errorf("срок хранения: %w", err)
	}

	b = &model.Bundle{ID: id, Files: files, Expires: expires}
	if err := provider.Bundle(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("Бандл сохранён",
		slog.String("provider", provider.Name()),
		slog.String("bundle_id", b.ID),
		slog.Int("files", len(b.Files)),
	)
	return b, nil
}

// Download отдаёт файл в sink.
func (s *TransferService) Download(ctx context.Context, tok string, sink storage.Sink) (err error) {
	defer func() { observe("download", err) }()

	provider, err := s.providers.Get()
	if err != nil {
		return err
	}
	return provider.Download(ctx, tok, sink)
}

// Archive отдаёт zip бандла в sink.
func (s *TransferService) Archive(ctx context.Context, tok string, sink storage.Sink) (err error) {
	defer func() { observe("archive", err) }()

	provider, err := s.providers.Get()
	if err != nil {
		return err
	}
	return provider.Archive(ctx, tok, sink)
}

// Info возвращает метаданные записи. Истёкшая запись — ErrExpired.
func (s *TransferService) Info(ctx context.Context, tok string) (meta *model.Metadata, err error) {
	defer func() { observe("info", err) }()

	provider, err := s.providers.Get()
	if err != nil {
		return nil, err
	}
	meta, err = provider.GetJSON(ctx, tok)
	if err != nil {
		return nil, err
	}
	if retention.IsExpired(meta.Expires(), s.now()) {
		return nil, storage.ErrExpired
	}
	return meta, nil
}

// cleanName убирает из имени клиента каталоги.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// DetectContentType определяет MIME-тип загрузки: по расширению, затем по
// содержимому, затем заявленный клиентом. application/octet-stream от
// первых двух шагов результатом не считается.
func DetectContentType(src storage.UploadedFile) string {
	if ct := stripParams(mime.TypeByExtension(filepath.Ext(src.Name))); ct != "" && ct != storage.DefaultContentType {
		return ct
	}
	if ct := sniff(src.Path); ct != "" && ct != storage.DefaultContentType {
		return ct
	}
	if ct := stripParams(src.Type); ct != "" {
		return ct
	}
	return storage.DefaultContentType
}

// stripParams убирает параметры (charset и т.д.).
func stripParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(contentType)
}

// sniff определяет тип по первым 512 байтам файла.
func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ""
	}
	if n == 0 {
		return ""
	}
	return stripParams(http.DetectContentType(buf[:n]))
}
