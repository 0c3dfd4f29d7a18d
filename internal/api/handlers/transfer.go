// transfer.go — HTTP handlers загрузки и выдачи файлов.
// Upload, FinalizeBundle, Download, Archive, Info.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/filedrop/internal/api/errors"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/service"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

const (
	// multipartOverhead — запас на заголовки и служебные поля multipart.
	multipartOverhead = 1 << 20
	// maxBundleBody — лимит тела запроса финализации бандла.
	maxBundleBody = 1 << 20
	// maxFieldSize — лимит текстовых полей формы.
	maxFieldSize = 256
)

var (
	// errTooLarge — файл превышает FD_MAX_FILE_SIZE.
	errTooLarge = errors.New("файл превышает допустимый размер")
	// errTempFile — не удалось создать временный файл.
	errTempFile = errors.New("ошибка временного файла")
)

// TransferHandler — обработчик файловых endpoints.
type TransferHandler struct {
	svc         *service.TransferService
	tempDir     string
	maxFileSize int64
	logger      *slog.Logger
}

// NewTransferHandler создаёт обработчик файловых endpoints.
// tempDir — директория временных файлов multipart (FD_TEMP_DIR).
func NewTransferHandler(svc *service.TransferService, tempDir string, maxFileSize int64, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		svc:         svc,
		tempDir:     tempDir,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "http")),
	}
}

// Upload обрабатывает POST /api/v1/upload.
// Multipart form: file (обязательно), lastModifiedDate (опционально).
// Содержимое файла пишется потоком во временный файл, без буфера в памяти.
func (h *TransferHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}

	var (
		src          *storage.UploadedFile
		lastModified string
	)
	discard := func() {
		if src != nil {
			_ = os.Remove(src.Path)
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			discard()
			h.writeBodyError(w, err)
			return
		}

		switch part.FormName() {
		case "file":
			if src != nil {
				// Принимается только первый файл
				_ = part.Close()
				continue
			}
			saved, err := h.saveTemp(part)
			_ = part.Close()
			if err != nil {
				h.writeBodyError(w, err)
				return
			}
			src = saved
		case "lastModifiedDate":
			raw, _ := io.ReadAll(io.LimitReader(part, maxFieldSize))
			lastModified = strings.TrimSpace(string(raw))
			_ = part.Close()
		default:
			_ = part.Close()
		}
	}

	if src == nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	src.LastModifiedDate = lastModified

	// Временный файл удаляет сервис
	fc, err := h.svc.Upload(r.Context(), *src)
	if err != nil {
		h.fail(r.Context(), w, "upload", err)
		return
	}

	writeJSON(w, http.StatusCreated, publicFile(fc))
}

// saveTemp сохраняет часть multipart во временный файл.
func (h *TransferHandler) saveTemp(part *multipart.Part) (*storage.UploadedFile, error) {
	f, err := os.CreateTemp(h.tempDir, "filedrop-upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTempFile, err)
	}

	n, err := io.Copy(f, io.LimitReader(part, h.maxFileSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > h.maxFileSize {
		err = errTooLarge
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, err
	}

	return &storage.UploadedFile{
		Path: f.Name(),
		Name: part.FileName(),
		Size: n,
		Type: part.Header.Get("Content-Type"),
	}, nil
}

// writeBodyError отвечает на ошибку чтения тела запроса.
func (h *TransferHandler) writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errTooLarge), errors.As(err, &maxErr):
		apierrors.FileTooLarge(w, fmt.Sprintf("Максимальный размер файла: %d байт", h.maxFileSize))
	case errors.Is(err, errTempFile):
		h.logger.Error("Не удалось сохранить загрузку", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось сохранить загрузку")
	default:
		h.logger.Warn("Ошибка чтения multipart", slog.String("error", err.Error()))
		apierrors.ValidationError(w, "Ошибка чтения multipart")
	}
}

// FinalizeBundle обрабатывает POST /api/v1/bundle.
// Тело: {"id": "<uuid>"?, "files": [{"id": "...", "name": "..."}]}.
func (h *TransferHandler) FinalizeBundle(w http.ResponseWriter, r *http.Request) {
	var req service.BundleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBundleBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	b, err := h.svc.FinalizeBundle(r.Context(), req)
	if err != nil {
		h.fail(r.Context(), w, "bundle", err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// Download обрабатывает GET /api/v1/download/{token}.
func (h *TransferHandler) Download(w http.ResponseWriter, r *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	if err := h.svc.Download(r.Context(), chi.URLParam(r, "token"), tw); err != nil {
		h.failStream(r.Context(), tw, "download", err)
	}
}

// Archive обрабатывает GET /api/v1/bundle/{token}/archive.
func (h *TransferHandler) Archive(w http.ResponseWriter, r *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	if err := h.svc.Archive(r.Context(), chi.URLParam(r, "token"), tw); err != nil {
		h.failStream(r.Context(), tw, "archive", err)
	}
}

// Info обрабатывает GET /api/v1/info/{token}.
func (h *TransferHandler) Info(w http.ResponseWriter, r *http.Request) {
	meta, err := h.svc.Info(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(r.Context(), w, "info", err)
		return
	}

	if meta.Kind == model.KindFile {
		writeJSON(w, http.StatusOK, publicFile(meta.File))
		return
	}
	writeJSON(w, http.StatusOK, meta.Bundle)
}

// fail логирует ошибку и отвечает клиенту.
func (h *TransferHandler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelError
	if storage.IsClientError(err) || errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrExpired) || errors.Is(err, storage.ErrParse) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "Ошибка операции",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	apierrors.WriteStorageError(w, err)
}

// failStream обрабатывает ошибку потоковой выдачи. Если байты уже
// ушли клиенту, ответ изменить нельзя, ошибка только логируется.
func (h *TransferHandler) failStream(ctx context.Context, tw *trackingWriter, op string, err error) {
	if !tw.wrote {
		h.fail(ctx, tw.ResponseWriter, op, err)
		return
	}
	h.logger.Error("Поток прерван после начала ответа",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// publicFile — копия FileContext без путей хранилища.
func publicFile(fc *model.FileContext) *model.FileContext {
	out := *fc
	out.Path = ""
	out.JSONPath = ""
	out.Key = ""
	return &out
}

// trackingWriter отмечает, начат ли ответ.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(b)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (t *trackingWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}
