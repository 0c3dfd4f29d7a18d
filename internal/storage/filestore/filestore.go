// Пакет filestore — операции с payload-файлами локального хранилища.
// Все пути разрешаются относительно корня и проверяются на выход
// за его пределы до любой операции с файловой системой.
// Запись выполняется атомарно: temp файл → (шифрование) → fsync → rename.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/filedrop/internal/crypto/streamcrypt"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// PayloadSuffix — суффикс файла с содержимым.
const PayloadSuffix = ".binary"

// FileStore — управление payload-файлами в корне хранилища.
type FileStore struct {
	// root — корневая директория хранилища (storage.localStoragePath)
	root string
}

// New создаёт FileStore. Директория не создаётся: это делает
// EnsureRoot при первой записи.
func New(root string) *FileStore {
	return &FileStore{root: root}
}

// Root возвращает корневую директорию.
func (s *FileStore) Root() string {
	return s.root
}

// EnsureRoot идемпотентно создаёт корневую директорию.
func (s *FileStore) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию хранилища %s: %w", s.root, err)
	}
	return nil
}

// Resolve возвращает абсолютный путь name внутри корня.
// Путь, выходящий за пределы корня или во вложенную директорию,
// отклоняется с storage.ErrPathTraversal.
func (s *FileStore) Resolve(name string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("ошибка разрешения корня %s: %w", s.root, err)
	}

	full, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return "", storage.ErrPathTraversal
	}

	if !strings.HasPrefix(full, root+string(filepath.Separator)) || filepath.Dir(full) != root {
		return "", storage.ErrPathTraversal
	}
	return full, nil
}

// PayloadPath возвращает путь к payload токена.
func (s *FileStore) PayloadPath(token string) (string, error) {
	return s.Resolve(token + PayloadSuffix)
}

// Save записывает содержимое src в fullPath.
// Если key != nil, содержимое шифруется потоковым шифром.
// Возвращает число байт исходного (нешифрованного) содержимого.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *FileStore) Save(src io.Reader, fullPath string, key *streamcrypt.Key) (int64, error) {
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	var dst io.Writer = f
	if key != nil {
		dst, err = key.EncryptWriter(f)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return 0, fmt.Errorf("ошибка инициализации шифрования: %w", err)
		}
	}

	size, err := io.Copy(dst, src)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает payload для чтения.
// Отсутствующий файл — storage.ErrNotFound.
func (s *FileStore) Open(fullPath string) (*os.File, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: payload %s", storage.ErrNotFound, filepath.Base(fullPath))
		}
		return nil, storage.WrapIO("open", fullPath, err)
	}
	return f, nil
}

// Delete удаляет файл. Возвращает nil, если файл уже не существует.
func (s *FileStore) Delete(fullPath string) error {
	err := os.Remove(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", fullPath, err)
	}
	return nil
}

// ListPayloads возвращает токены всех payload-файлов в корне.
// Несуществующий корень — пустой список.
func (s *FileStore) ListPayloads() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", s.root, err)
	}

	tokens := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), PayloadSuffix) {
			continue
		}
		tokens = append(tokens, strings.TrimSuffix(e.Name(), PayloadSuffix))
	}
	return tokens, nil
}

// Writable проверяет, что корень существует (создаётся при необходимости)
// и доступен на запись.
func (s *FileStore) Writable() error {
	if err := s.EnsureRoot(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("директория хранилища недоступна на запись: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
