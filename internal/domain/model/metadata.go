// Пакет model — доменные модели filedrop.
// FileContext и Bundle — единые структуры метаданных, используются
// как in-memory представление и как формат JSON-sidecar на диске
// (или в метаданных объекта в S3).
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Expiry — момент истечения срока хранения записи.
// Нулевое значение означает «никогда не истекает» и сериализуется как false.
type Expiry struct {
	at  time.Time
	set bool
}

// Never — запись без срока хранения.
var Never = Expiry{}

// ExpiresAt создаёт Expiry с абсолютным моментом истечения.
func ExpiresAt(t time.Time) Expiry {
	return Expiry{at: t.UTC(), set: true}
}

// Time возвращает момент истечения и true, если срок задан.
func (e Expiry) Time() (time.Time, bool) {
	return e.at, e.set
}

// IsNever возвращает true для записей без срока хранения.
func (e Expiry) IsNever() bool {
	return !e.set
}

// String возвращает RFC3339 или "never".
func (e Expiry) String() string {
	if !e.set {
		return "never"
	}
	return e.at.Format(time.RFC3339Nano)
}

// MarshalJSON сериализует Expiry как false или строку RFC3339.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if !e.set {
		return []byte("false"), nil
	}
	return json.Marshal(e.at.Format(time.RFC3339Nano))
}

// UnmarshalJSON принимает false, null, строку RFC3339 или число
// миллисекунд Unix (формат старых записей).
func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("null")):
		*e = Never
		return nil
	case bytes.Equal(data, []byte("true")):
		return fmt.Errorf("некорректное значение expires: true")
	case len(data) > 0 && data[0] == '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("некорректное значение expires: %w", err)
		}
		if raw == "" {
			*e = Never
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("некорректная дата expires %q: %w", raw, err)
		}
		*e = ExpiresAt(t)
		return nil
	default:
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("некорректное значение expires: %s", data)
		}
		*e = ExpiresAt(time.UnixMilli(ms))
		return nil
	}
}

// FileContext — метаданные одного загруженного файла.
// Path/JSONPath заполняются локальным провайдером, Key — объектным.
type FileContext struct {
	// ID — непрозрачный токен файла
	ID string `json:"id"`

	// Name — исходное имя файла (пользовательский ввод, не доверенный)
	Name string `json:"name"`

	// Size — размер содержимого в байтах (до шифрования)
	Size int64 `json:"size"`

	// Type — MIME-тип
	Type string `json:"type"`

	// LastModifiedDate — значение клиента, передаётся как есть
	LastModifiedDate string `json:"lastModifiedDate,omitempty"`

	Path     string `json:"path,omitempty"`
	JSONPath string `json:"jsonPath,omitempty"`
	Key      string `json:"key,omitempty"`

	// Encrypted — payload записан через потоковый шифр
	Encrypted bool `json:"encrypted,omitempty"`

	Expires Expiry `json:"expires"`
}

// BundleFile — краткая ссылка на файл внутри бандла.
type BundleFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bundle — набор файлов, загруженных вместе и скачиваемых одним zip.
// Порядок Files совпадает с порядком загрузки.
type Bundle struct {
	ID      string       `json:"id"`
	Files   []BundleFile `json:"files"`
	Expires Expiry       `json:"expires"`
}

// Kind — тип записи метаданных.
type Kind string

const (
	KindFile   Kind = "file"
	KindBundle Kind = "bundle"
)

// Metadata — результат getJSON: запись файла или бандла.
type Metadata struct {
	Kind   Kind
	File   *FileContext
	Bundle *Bundle
}

// ID возвращает токен записи.
func (m *Metadata) ID() string {
	if m.Bundle != nil {
		return m.Bundle.ID
	}
	if m.File != nil {
		return m.File.ID
	}
	return ""
}

// Expires возвращает срок хранения записи.
func (m *Metadata) Expires() Expiry {
	if m.Bundle != nil {
		return m.Bundle.Expires
	}
	if m.File != nil {
		return m.File.Expires
	}
	return Never
}

// MarshalJSON сериализует запись в исходном формате (без обёртки).
func (m *Metadata) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindBundle:
		return json.Marshal(m.Bundle)
	case KindFile:
		return json.Marshal(m.File)
	default:
		return []byte("null"), nil
	}
}

// probe — минимальная структура для определения типа записи.
type probe struct {
	Files *json.RawMessage `json:"files"`
}

// DecodeMetadata разбирает JSON файла или бандла.
// Запись с полем files считается бандлом.
func DecodeMetadata(data []byte) (*Metadata, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	if p.Files != nil {
		var b Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &Metadata{Kind: KindBundle, Bundle: &b}, nil
	}

	var fc FileContext
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &Metadata{Kind: KindFile, File: &fc}, nil
}
