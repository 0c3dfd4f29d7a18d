// Пакет attr — чтение и запись JSON-sidecar метаданных ({token}.json).
// Sidecar всегда хранится в открытом виде и является единственным
// источником истины для метаданных файла или бандла.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// Suffix — суффикс файла метаданных.
const Suffix = ".json"

// TokenFromPath возвращает токен по пути sidecar.
// Пример: "/data/abc.json" → "abc"
func TokenFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Suffix)
}

// Write атомарно записывает v (FileContext или Bundle) в path.
// Паттерн: JSON → temp файл → fsync → atomic rename.
func Write(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает sidecar. Отсутствующий файл — storage.ErrNotFound,
// невалидный JSON — storage.ErrParse.
func Read(path string) (*model.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, TokenFromPath(path))
		}
		return nil, storage.WrapIO("read", path, err)
	}

	meta, err := model.DecodeMetadata(data)
	if err != nil {
		return nil, storage.ParseError(filepath.Base(path), err)
	}
	return meta, nil
}

// Delete удаляет sidecar. Возвращает nil, если файл уже не существует.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления %s: %w", path, err)
	}
	return nil
}

// Record — прочитанный sidecar и его путь.
type Record struct {
	Path string
	Meta *model.Metadata
}

// ScanDir читает все sidecar-файлы директории (не рекурсивно).
// Невалидные записи пропускаются; о каждой сообщается через onError
// (может быть nil). Несуществующая директория — пустой результат.
func ScanDir(dir string, onError func(path string, err error)) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	result := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Suffix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		meta, err := Read(path)
		if err != nil {
			if onError != nil {
				onError(path, err)
			}
			continue
		}
		result = append(result, Record{Path: path, Meta: meta})
	}

	return result, nil
}
