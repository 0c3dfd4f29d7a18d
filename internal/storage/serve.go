package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/retention"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/archive"
)

// PayloadSource — общая часть провайдеров для скачивания и архивации.
type PayloadSource interface {
	GetJSON(ctx context.Context, token string) (*model.Metadata, error)

	// CheckLocator проверяет, что все локаторы токена лежат внутри
	// хранилища. Не обращается к бэкенду.
	CheckLocator(token string) error

	// OpenPayload открывает payload файла, расшифровывая его по флагу записи.
	OpenPayload(ctx context.Context, token string, fc *model.FileContext) (io.ReadCloser, error)
}

// LoadFile читает запись файла и проверяет срок хранения.
// Токен бандла считается отсутствующим файлом.
func LoadFile(ctx context.Context, src PayloadSource, token string, now time.Time) (*model.FileContext, error) {
	meta, err := src.GetJSON(ctx, token)
	if err != nil {
		return nil, err
	}
	if meta.Kind != model.KindFile {
		return nil, fmt.Errorf("%w: %s не является файлом", ErrNotFound, token)
	}
	if retention.IsExpired(meta.Expires(), now) {
		return nil, ErrExpired
	}
	return meta.File, nil
}

// LoadBundle читает запись бандла и проверяет срок хранения.
// Нечитаемая запись или запись без files — ErrInvalidBundle.
func LoadBundle(ctx context.Context, src PayloadSource, token string, now time.Time) (*model.Bundle, error) {
	meta, err := src.GetJSON(ctx, token)
	if err != nil {
		if errors.Is(err, ErrParse) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
		}
		return nil, err
	}
	if meta.Kind != model.KindBundle || len(meta.Bundle.Files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBundle, token)
	}
	if retention.IsExpired(meta.Expires(), now) {
		return nil, ErrExpired
	}
	return meta.Bundle, nil
}

// Download выставляет заголовки и копирует payload в sink.
// Заголовки выставляются только после успешного открытия payload.
func Download(ctx context.Context, src PayloadSource, token string, sink Sink, now time.Time) error {
	fc, err := LoadFile(ctx, src, token, now)
	if err != nil {
		return err
	}

	rc, err := src.OpenPayload(ctx, token, fc)
	if err != nil {
		return err
	}
	defer rc.Close()

	SetDownloadHeaders(sink, fc)
	if _, err := io.Copy(sink, rc); err != nil {
		return WrapIO("download", token, err)
	}
	return nil
}

// Archive собирает zip бандла в sink.
// Локаторы всех участников проверяются до первого обращения к бэкенду.
func Archive(ctx context.Context, src PayloadSource, token string, sink Sink, now time.Time) error {
	if err := CheckToken(token); err != nil {
		return err
	}
	b, err := LoadBundle(ctx, src, token, now)
	if err != nil {
		return err
	}

	members := make([]archive.Member, 0, len(b.Files))
	for _, bf := range b.Files {
		if err := CheckToken(bf.ID); err != nil {
			return fmt.Errorf("%w: участник без id", ErrInvalidBundle)
		}
		if err := src.CheckLocator(bf.ID); err != nil {
			return err
		}

		id := bf.ID
		members = append(members, archive.Member{
			Name: bf.Name,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				meta, err := src.GetJSON(ctx, id)
				if err != nil {
					return nil, err
				}
				if meta.Kind != model.KindFile {
					return nil, fmt.Errorf("%w: участник %s не является файлом", ErrInvalidBundle, id)
				}
				return src.OpenPayload(ctx, id, meta.File)
			},
		})
	}

	SetArchiveHeaders(sink, b.ID)
	if err := archive.Write(ctx, sink, members); err != nil {
		return fmt.Errorf("архив бандла %s: %w", token, err)
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ReadCloser объединяет поток чтения r с закрытием исходного c.
func ReadCloser(r io.Reader, c io.Closer) io.ReadCloser {
	return readCloser{Reader: r, Closer: c}
}
