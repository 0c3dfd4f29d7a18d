package storage

import (
	"mime"
	"path/filepath"
	"strconv"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/archive"
)

// DefaultContentType — MIME-тип, если ни расширение, ни запись не дают типа.
const DefaultContentType = "application/octet-stream"

// ContentTypeFor определяет MIME-тип по расширению имени,
// иначе берёт сохранённый тип записи.
func ContentTypeFor(name, stored string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if stored != "" {
		return stored
	}
	return DefaultContentType
}

// attachment формирует Content-Disposition; не-ASCII имена кодируются по RFC 2231.
func attachment(name string) string {
	v := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	if v == "" {
		return "attachment"
	}
	return v
}

// SetDownloadHeaders выставляет заголовки скачивания одного файла.
// Content-Length — размер исходного (расшифрованного) содержимого.
func SetDownloadHeaders(sink Sink, fc *model.FileContext) {
	h := sink.Header()
	h.Set("Content-Disposition", attachment(fc.Name))
	h.Set("Content-Type", ContentTypeFor(fc.Name, fc.Type))
	if fc.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(fc.Size, 10))
	}
}

// SetArchiveHeaders выставляет заголовки zip-архива бандла.
func SetArchiveHeaders(sink Sink, bundleID string) {
	h := sink.Header()
	h.Set("Content-Disposition", attachment(bundleID+".zip"))
	h.Set("Content-Type", archive.ContentType)
}
