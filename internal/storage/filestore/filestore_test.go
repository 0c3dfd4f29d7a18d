package filestore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/filedrop/internal/crypto/streamcrypt"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// TestEnsureRoot_CreatesDirectory проверяет идемпотентное создание корня.
func TestEnsureRoot_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	fs := New(dir)

	for i := 0; i < 2; i++ {
		if err := fs.EnsureRoot(); err != nil {
			t.Fatalf("ошибка создания корня (попытка %d): %v", i+1, err)
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("директория не создана: %v", err)
	}
}

// TestResolve_Traversal проверяет защиту от выхода за пределы корня.
func TestResolve_Traversal(t *testing.T) {
	fs := New(t.TempDir())

	bad := []string{
		"../../etc/passwd",
		"../secret.json",
		"sub/dir.json",
		"/etc/passwd",
		"..",
		".",
	}
	for _, name := range bad {
		if _, err := fs.Resolve(name); !errors.Is(err, storage.ErrPathTraversal) {
			t.Errorf("Resolve(%q): ожидалась ErrPathTraversal, получено %v", name, err)
		}
	}

	full, err := fs.Resolve("abc.json")
	if err != nil {
		t.Fatalf("Resolve(abc.json): %v", err)
	}
	if filepath.Base(full) != "abc.json" {
		t.Errorf("неверный путь: %s", full)
	}
}

// TestSave_Plain проверяет атомарную запись без шифрования.
func TestSave_Plain(t *testing.T) {
	fs := New(t.TempDir())
	path, err := fs.PayloadPath("tok")
	if err != nil {
		t.Fatal(err)
	}

	content := "Hello, filedrop!"
	size, err := fs.Save(strings.NewReader(content), path, nil)
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), size)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != content {
		t.Errorf("содержимое не совпадает: %q, %v", data, err)
	}

	// Temp файл не должен остаться
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

// TestSave_Encrypted проверяет запись через потоковый шифр.
func TestSave_Encrypted(t *testing.T) {
	fs := New(t.TempDir())
	path, _ := fs.PayloadPath("enc")

	key, err := streamcrypt.NewKey("test-secret-key")
	if err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte("secret-data "), 1000)
	size, err := fs.Save(bytes.NewReader(content), path, key)
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("размер исходного содержимого: ожидалось %d, получено %d", len(content), size)
	}

	raw, _ := os.ReadFile(path)
	if bytes.Contains(raw, []byte("secret-data")) {
		t.Error("payload записан в открытом виде")
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r, err := key.DecryptReader(f)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(r)
	if err != nil || !bytes.Equal(plain, content) {
		t.Error("расшифрованное содержимое не совпадает")
	}
}

// TestOpen_NotFound проверяет ошибку для отсутствующего файла.
func TestOpen_NotFound(t *testing.T) {
	fs := New(t.TempDir())
	path, _ := fs.PayloadPath("missing")

	if _, err := fs.Open(path); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestDelete_Idempotent проверяет удаление несуществующего файла.
func TestDelete_Idempotent(t *testing.T) {
	fs := New(t.TempDir())
	path, _ := fs.PayloadPath("gone")

	if err := fs.Delete(path); err != nil {
		t.Errorf("удаление отсутствующего файла: %v", err)
	}
}

// TestListPayloads проверяет перечисление payload-файлов.
func TestListPayloads(t *testing.T) {
	dir := t.TempDir()
	fs := New(dir)

	for _, name := range []string{"a.binary", "b.binary", "a.json", "c.binary.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o640); err != nil {
			t.Fatal(err)
		}
	}

	tokens, err := fs.ListPayloads()
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 || tokens[0] != "a" || tokens[1] != "b" {
		t.Errorf("ожидалось [a b], получено %v", tokens)
	}

	empty, err := New(filepath.Join(dir, "missing")).ListPayloads()
	if err != nil || len(empty) != 0 {
		t.Errorf("несуществующий корень: %v, %v", empty, err)
	}
}

// TestListPayloads_MetaCharsInRoot проверяет корень с символами [ ] * ?
// в имени.
func TestListPayloads_MetaCharsInRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "[drop]*?")
	if err := os.MkdirAll(filepath.Join(dir, "sub.binary"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.binary"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}

	tokens, err := New(dir).ListPayloads()
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0] != "a" {
		t.Errorf("ожидалось [a], получено %v", tokens)
	}
}

// TestWritable проверяет проверку доступности корня на запись.
func TestWritable(t *testing.T) {
	fs := New(filepath.Join(t.TempDir(), "data"))
	if err := fs.Writable(); err != nil {
		t.Fatalf("корень должен быть доступен: %v", err)
	}
	entries, _ := os.ReadDir(fs.Root())
	if len(entries) != 0 {
		t.Errorf("проба не удалена: %v", entries)
	}
}
