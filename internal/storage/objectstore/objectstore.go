// Пакет objectstore — провайдер хранилища на S3-совместимом объектном
// хранилище (MinIO, AWS S3).
//
// Файл хранится под ключом = id, его FileContext — в пользовательских
// метаданных объекта "json" (base64). Бандл хранится под ключом = id,
// тело объекта — JSON записи бандла.
package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/goartstore/filedrop/internal/crypto/streamcrypt"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/model"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/retention"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// MetadataKey — имя пользовательских метаданных объекта с FileContext.
const MetadataKey = "json"

// maxBundleSize — максимальный размер тела объекта бандла.
const maxBundleSize = 1 << 20

// Config — параметры подключения к объектному хранилищу.
type Config struct {
	// Endpoint — без протокола, например "localhost:9000"
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Provider — ObjectStorage.
type Provider struct {
	client *minio.Client
	bucket string
	region string
	key    *streamcrypt.Key
	now    func() time.Time
	logger *slog.Logger
}

// Option — опция конструктора Provider.
type Option func(*Provider)

// WithKey включает шифрование payload при загрузке.
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

// New создаёт провайдер. Сетевых запросов не выполняет:
// bucket создаётся при первой записи.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: endpoint и bucket обязательны")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: создание клиента minio: %w", err)
	}

	p := &Provider{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "object_storage"))
	return p, nil
}

var (
	_ storage.Provider      = (*Provider)(nil)
	_ storage.PayloadSource = (*Provider)(nil)
	_ storage.Pinger        = (*Provider)(nil)
)

// Name возвращает имя провайдера.
func (p *Provider) Name() string {
	return storage.LocationS3
}

// CheckLocator проверяет ключ объекта: без сегментов "..",
// ведущего "/" и обратных слешей.
func (p *Provider) CheckLocator(key string) error {
	if err := storage.CheckToken(key); err != nil {
		return err
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return storage.ErrPathTraversal
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return storage.ErrPathTraversal
		}
	}
	return nil
}

// ensureBucket идемпотентно создаёт bucket.
func (p *Provider) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return storage.WrapIO("bucket", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		// Bucket мог быть создан параллельным запросом
		if resp := minio.ToErrorResponse(err); resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return storage.WrapIO("bucket", p.bucket, err)
	}
	return nil
}

// mapError переводит ответ S3 в таксономию хранилища.
func mapError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return storage.WrapIO(op, key, err)
}

// GetJSON загружает метаданные: для файла — из метаданных объекта,
// для бандла — тело объекта.
func (p *Provider) GetJSON(ctx context.Context, token string) (*model.Metadata, error) {
	if err := p.CheckLocator(token); err != nil {
		return nil, err
	}

	info, err := p.client.StatObject(ctx, p.bucket, token, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapError("stat", token, err)
	}

	if raw, ok := userMetadata(info.UserMetadata, MetadataKey); ok {
		data, err := decodeHeader(raw)
		if err != nil {
			return nil, storage.ParseError(token, err)
		}
		meta, err := model.DecodeMetadata(data)
		if err != nil {
			return nil, storage.ParseError(token, err)
		}
		return meta, nil
	}

	obj, err := p.client.GetObject(ctx, p.bucket, token, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("get", token, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxBundleSize))
	if err != nil {
		return nil, mapError("get", token, err)
	}
	meta, err := model.DecodeMetadata(data)
	if err != nil {
		return nil, storage.ParseError(token, err)
	}
	return meta, nil
}

// userMetadata ищет ключ без учёта регистра: сервер возвращает
// канонизированные имена заголовков.
func userMetadata(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// encodeHeader кодирует JSON для заголовка x-amz-meta-json.
func encodeHeader(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// decodeHeader принимает base64 или сырой JSON.
func decodeHeader(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return []byte(raw), nil
	}
	return base64.StdEncoding.DecodeString(raw)
}

// Upload загружает payload и FileContext одним PutObject.
func (p *Provider) Upload(ctx context.Context, src storage.UploadedFile, fc *model.FileContext) (*model.FileContext, error) {
	if fc == nil {
		return nil, fmt.Errorf("objectstore: upload: пустой контекст файла")
	}
	if err := p.CheckLocator(fc.ID); err != nil {
		return nil, err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	in, err := os.Open(src.Path)
	if err != nil {
		return nil, storage.WrapIO("upload", src.Path, err)
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return nil, storage.WrapIO("upload", src.Path, err)
	}

	out := *fc
	out.Size = st.Size()
	out.Key = fc.ID
	out.Path = ""
	out.JSONPath = ""
	out.Encrypted = p.key != nil

	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("objectstore: сериализация метаданных: %w", err)
	}

	var body io.Reader = in
	size := out.Size
	if p.key != nil {
		body, err = p.key.EncryptReader(in)
		if err != nil {
			return nil, storage.WrapIO("upload", fc.ID, err)
		}
		size = out.Size + int64(streamcrypt.HeaderSize)
	}

	_, err = p.client.PutObject(ctx, p.bucket, out.Key, body, size, minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: map[string]string{MetadataKey: encodeHeader(data)},
	})
	if err != nil {
		return nil, storage.WrapIO("upload", out.Key, err)
	}

	p.logger.Debug("Объект загружен",
		slog.String("key", out.Key),
		slog.Int64("size", out.Size),
		slog.Bool("encrypted", out.Encrypted),
	)
	return &out, nil
}

// Bundle сохраняет запись бандла телом объекта.
func (p *Provider) Bundle(ctx context.Context, b *model.Bundle) error {
	if b == nil {
		return storage.ErrInvalidBundle
	}
	if err := p.CheckLocator(b.ID); err != nil {
		return err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("objectstore: сериализация бандла: %w", err)
	}

	_, err = p.client.PutObject(ctx, p.bucket, b.ID, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return storage.WrapIO("bundle", b.ID, err)
	}
	return nil
}

// OpenPayload открывает объект файла и оборачивает его расшифровкой,
// если запись зашифрована.
func (p *Provider) OpenPayload(ctx context.Context, token string, fc *model.FileContext) (io.ReadCloser, error) {
	if err := p.CheckLocator(token); err != nil {
		return nil, err
	}
	if fc.Encrypted && p.key == nil {
		return nil, storage.WrapIO("decrypt", token, storage.ErrNoKey)
	}

	obj, err := p.client.GetObject(ctx, p.bucket, token, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError("get", token, err)
	}
	// GetObject ленивый: Stat выполняет запрос и проверяет существование
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError("get", token, err)
	}
	if !fc.Encrypted {
		return obj, nil
	}

	r, err := p.key.DecryptReader(obj)
	if err != nil {
		obj.Close()
		return nil, storage.WrapIO("decrypt", token, err)
	}
	return storage.ReadCloser(r, obj), nil
}

// Download отдаёт payload файла в sink.
func (p *Provider) Download(ctx context.Context, token string, sink storage.Sink) error {
	return storage.Download(ctx, p, token, sink, p.now())
}

// Archive отдаёт zip со всеми файлами бандла.
func (p *Provider) Archive(ctx context.Context, token string, sink storage.Sink) error {
	return storage.Archive(ctx, p, token, sink, p.now())
}

// Purge удаляет все истёкшие объекты bucket.
// Ошибка одного объекта логируется и не прерывает обход.
func (p *Provider) Purge(ctx context.Context) ([]string, error) {
	now := p.now()

	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return nil, storage.WrapIO("purge", p.bucket, err)
	}
	if !exists {
		return nil, nil
	}

	var deleted []string
	for obj := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			// Ошибка листинга прерывает обход: дальнейших объектов не будет
			return deleted, storage.WrapIO("purge", p.bucket, obj.Err)
		}

		meta, err := p.GetJSON(ctx, obj.Key)
		if err != nil {
			p.logger.Warn("Пропуск объекта с невалидными метаданными",
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !retention.IsExpired(meta.Expires(), now) {
			continue
		}

		if err := p.client.RemoveObject(ctx, p.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			p.logger.Error("Ошибка удаления истёкшего объекта",
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted = append(deleted, obj.Key)
	}

	return deleted, nil
}

// Ping проверяет доступность bucket.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.BucketExists(ctx, p.bucket); err != nil {
		return storage.WrapIO("ping", p.bucket, err)
	}
	return nil
}
