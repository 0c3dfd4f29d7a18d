// Пакет settings — runtime-настройки filedrop (хранилище, шифрование,
// срок хранения). Настройки читаются из YAML-файла и переменных
// окружения FD_SETTINGS_*, хранятся в атомарном Store и могут
// перечитываться без перезапуска.
package settings

import (
	"fmt"
	"strings"

	"github.com/bigkaa/goartstore/filedrop/internal/crypto/streamcrypt"
	"github.com/bigkaa/goartstore/filedrop/internal/domain/retention"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// Settings — снимок runtime-настроек. После публикации в Store не изменяется.
type Settings struct {
	Storage  StorageSettings  `koanf:"storage"`
	Security SecuritySettings `koanf:"security"`
	General  GeneralSettings  `koanf:"general"`
}

// StorageSettings — выбор и параметры провайдера хранилища.
type StorageSettings struct {
	// Location — local или s3
	Location         string     `koanf:"location"`
	LocalStoragePath string     `koanf:"localstoragepath"`
	S3               S3Settings `koanf:"s3"`
}

// S3Settings — параметры объектного хранилища.
type S3Settings struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"accesskey"`
	SecretKey string `koanf:"secretkey"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"usessl"`
}

// SecuritySettings — шифрование payload.
type SecuritySettings struct {
	EncryptionEnabled bool   `koanf:"encryptionenabled"`
	EncryptionKey     string `koanf:"encryptionkey"`
}

// GeneralSettings — срок хранения загрузок.
type GeneralSettings struct {
	// Retention — 0 или меньше: без срока хранения
	Retention     int    `koanf:"retention"`
	RetentionUnit string `koanf:"retentionunit"`
}

// Default возвращает настройки по умолчанию.
func Default() *Settings {
	return &Settings{
		Storage: StorageSettings{
			Location:         storage.LocationLocal,
			LocalStoragePath: "./data",
		},
		General: GeneralSettings{
			RetentionUnit: string(retention.UnitDays),
		},
	}
}

// Validate нормализует и проверяет настройки.
func (s *Settings) Validate() error {
	s.Storage.Location = strings.ToLower(strings.TrimSpace(s.Storage.Location))
	if s.Storage.Location == "" {
		s.Storage.Location = storage.LocationLocal
	}

	if s.Storage.Location == storage.LocationLocal && s.Storage.LocalStoragePath == "" {
		return fmt.Errorf("storage.localstoragepath не задан")
	}

	if _, err := retention.ParseUnit(s.General.RetentionUnit); err != nil {
		return fmt.Errorf("general.retentionunit: %w", err)
	}

	if s.Security.EncryptionEnabled && len(s.Security.EncryptionKey) < streamcrypt.MinSecretLength {
		return fmt.Errorf("security.encryptionkey: минимум %d символов при включённом шифровании",
			streamcrypt.MinSecretLength)
	}

	return nil
}

// EncryptionKey возвращает ключ шифрования или nil, если шифрование выключено.
func (s *Settings) EncryptionKey() (*streamcrypt.Key, error) {
	if !s.Security.EncryptionEnabled {
		return nil, nil
	}
	return streamcrypt.NewKey(s.Security.EncryptionKey)
}
