package settings

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix — префикс переменных окружения настроек.
// FD_SETTINGS_STORAGE_S3_BUCKET → storage.s3.bucket
const DefaultEnvPrefix = "FD_SETTINGS_"

// Loader читает настройки: значения по умолчанию → YAML-файл → окружение.
type Loader struct {
	filePath  string
	envPrefix string
}

// NewLoader создаёт загрузчик. filePath может быть пустым.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath, envPrefix: DefaultEnvPrefix}
}

// FilePath возвращает путь к файлу настроек.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load читает и проверяет настройки. Каждый вызов начинает с чистого
// koanf: удалённые из файла ключи возвращаются к значениям по умолчанию.
func (l *Loader) Load() (*Settings, error) {
	k := koanf.New(".")

	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("загрузка файла настроек %s: %w", l.filePath, err)
		}
	}

	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("загрузка настроек из окружения: %w", err)
	}

	s := Default()
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("разбор настроек: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("невалидные настройки: %w", err)
	}
	return s, nil
}
