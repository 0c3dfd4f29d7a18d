package errors //nolint:revive

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/goartstore/filedrop/internal/storage"
	"github.com/bigkaa/goartstore/filedrop/internal/token"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	return body.Error
}

func TestWriteError_ClearsDownloadHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Disposition", `attachment; filename="a.txt"`)
	rec.Header().Set("Content-Length", "10")

	WriteError(rec, http.StatusNotFound, CodeNotAvailable, "x")

	if rec.Header().Get("Content-Disposition") != "" || rec.Header().Get("Content-Length") != "" {
		t.Errorf("заголовки скачивания не удалены: %v", rec.Header())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	if d := decode(t, rec); d.Code != CodeNotAvailable || d.Message != "x" {
		t.Errorf("тело = %+v", d)
	}
}

func TestWriteStorageError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("%w: abc", storage.ErrNotFound), http.StatusNotFound, CodeNotAvailable},
		{"expired", storage.ErrExpired, http.StatusNotFound, CodeNotAvailable},
		{"missing token", storage.ErrMissingToken, http.StatusBadRequest, CodeInvalidToken},
		{"traversal", storage.ErrPathTraversal, http.StatusBadRequest, CodeInvalidToken},
		{"malformed", token.ErrMalformed, http.StatusBadRequest, CodeInvalidToken},
		{"parse", storage.ParseError("/data/x.json", fmt.Errorf("eof")), http.StatusBadRequest, CodeValidationError},
		{"bundle", storage.ErrInvalidBundle, http.StatusBadRequest, CodeValidationError},
		{"unsupported", storage.ErrUnsupportedProvider, http.StatusInternalServerError, CodeInternalError},
		{"io", storage.WrapIO("download", "/data/x.binary", fmt.Errorf("disk")), http.StatusBadGateway, CodeUpstreamError},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteStorageError(rec, tt.err)

			if rec.Code != tt.status {
				t.Errorf("статус: ожидался %d, получен %d", tt.status, rec.Code)
			}
			d := decode(t, rec)
			if d.Code != tt.code {
				t.Errorf("код: ожидался %s, получен %s", tt.code, d.Code)
			}
		})
	}
}

func TestWriteStorageError_HidesPaths(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteStorageError(rec, storage.ParseError("/srv/secret/abc.json", fmt.Errorf("unexpected end")))

	if d := decode(t, rec); d.Message != "Некорректная запись метаданных" {
		t.Errorf("сообщение раскрывает детали: %s", d.Message)
	}
}
