// Пакет archive — сборка zip-архива бандла на лету.
//
// Потоки всех участников открываются параллельно; запись в архив и
// финализация начинаются только после того, как открыты все N потоков.
// Ошибка любого участника прерывает сборку: частичный архив не отдаётся.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// ContentType — MIME-тип ответа с архивом.
const ContentType = "application/zip"

// Member — участник архива.
type Member struct {
	// Name — имя записи в архиве (исходное имя файла)
	Name string
	// Open открывает поток содержимого (уже расшифрованный).
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// entryWriter — приёмник записей архива.
type entryWriter interface {
	Append(name string, r io.Reader) error
	Finalize() error
}

// zipWriter — entryWriter поверх klauspost zip.
type zipWriter struct {
	zw  *zip.Writer
	now time.Time
}

func newZipWriter(w io.Writer) *zipWriter {
	return &zipWriter{zw: zip.NewWriter(w), now: time.Now()}
}

func (z *zipWriter) Append(name string, r io.Reader) error {
	dst, err := z.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: z.now,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

func (z *zipWriter) Finalize() error {
	return z.zw.Close()
}

// Write собирает архив из members в w.
// Порядок записей совпадает с порядком members.
func Write(ctx context.Context, w io.Writer, members []Member) error {
	return build(ctx, newZipWriter(w), members)
}

func build(ctx context.Context, ew entryWriter, members []Member) error {
	readers := make([]io.ReadCloser, len(members))
	defer func() {
		for _, rc := range readers {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	// Барьер: все участники должны быть открыты до первой записи
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		g.Go(func() error {
			rc, err := m.Open(gctx)
			if err != nil {
				return fmt.Errorf("участник архива %q: %w", m.Name, err)
			}
			readers[i] = rc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, m := range members {
		if err := ew.Append(EntryName(m.Name), readers[i]); err != nil {
			return fmt.Errorf("запись %q в архив: %w", m.Name, err)
		}
	}

	return ew.Finalize()
}

// EntryName приводит имя файла к безопасному имени записи zip:
// без каталогов и абсолютных путей.
func EntryName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "file"
	}
	return base
}
