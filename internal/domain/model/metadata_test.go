package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestExpiry_MarshalNever(t *testing.T) {
	data, err := json.Marshal(Never)
	if err != nil {
		t.Fatalf("ошибка сериализации: %v", err)
	}
	if string(data) != "false" {
		t.Errorf("ожидалось false, получено %s", data)
	}
}

func TestExpiry_UnmarshalVariants(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		never bool
		want  time.Time
	}{
		{"false", `false`, true, time.Time{}},
		{"null", `null`, true, time.Time{}},
		{"empty string", `""`, true, time.Time{}},
		{"rfc3339", `"2026-03-01T12:00:00Z"`, false, at},
		{"millis", `1772366400000`, false, at},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Expiry
			if err := json.Unmarshal([]byte(tt.input), &e); err != nil {
				t.Fatalf("ошибка разбора: %v", err)
			}
			if e.IsNever() != tt.never {
				t.Fatalf("IsNever: ожидалось %v, получено %v", tt.never, e.IsNever())
			}
			if got, ok := e.Time(); ok && !got.Equal(tt.want) {
				t.Errorf("время: ожидалось %s, получено %s", tt.want, got)
			}
		})
	}
}

func TestExpiry_UnmarshalInvalid(t *testing.T) {
	for _, input := range []string{`true`, `"yesterday"`, `{}`} {
		var e Expiry
		if err := json.Unmarshal([]byte(input), &e); err == nil {
			t.Errorf("ожидалась ошибка для %s", input)
		}
	}
}

func TestDecodeMetadata_File(t *testing.T) {
	raw := `{"id":"abc","name":"report.pdf","size":1024,"type":"application/pdf","path":"/data/abc.binary","expires":false}`

	meta, err := DecodeMetadata([]byte(raw))
	if err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if meta.Kind != KindFile || meta.File == nil {
		t.Fatalf("ожидалась запись файла, получено %+v", meta)
	}
	if meta.ID() != "abc" || meta.File.Size != 1024 {
		t.Errorf("неверные поля: %+v", meta.File)
	}
	if !meta.Expires().IsNever() {
		t.Error("ожидался бессрочный файл")
	}
}

func TestDecodeMetadata_Bundle(t *testing.T) {
	raw := `{"id":"b-1","files":[{"id":"f1","name":"a.txt"},{"id":"f2","name":"b.txt"}],"expires":"2030-01-01T00:00:00Z"}`

	meta, err := DecodeMetadata([]byte(raw))
	if err != nil {
		t.Fatalf("ошибка разбора: %v", err)
	}
	if meta.Kind != KindBundle || meta.Bundle == nil {
		t.Fatalf("ожидался бандл, получено %+v", meta)
	}
	if len(meta.Bundle.Files) != 2 || meta.Bundle.Files[1].Name != "b.txt" {
		t.Errorf("неверный список файлов: %+v", meta.Bundle.Files)
	}

	out, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("ошибка сериализации: %v", err)
	}
	again, err := DecodeMetadata(out)
	if err != nil || again.Kind != KindBundle {
		t.Fatalf("повторный разбор: %v, %+v", err, again)
	}
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	if _, err := DecodeMetadata([]byte(`{"id":`)); err == nil {
		t.Fatal("ожидалась ошибка разбора")
	}
}
