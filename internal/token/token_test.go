package token

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerate_UniqueAndValid(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("ошибка генерации: %v", err)
		}
		if len(tok) != 32 {
			t.Fatalf("длина токена: ожидалось 32, получено %d", len(tok))
		}
		if err := Validate(tok); err != nil {
			t.Fatalf("сгенерированный токен %q невалиден: %v", tok, err)
		}
		if seen[tok] {
			t.Fatalf("повтор токена %q", tok)
		}
		seen[tok] = true
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		tok  string
		want error
	}{
		{"", ErrEmpty},
		{"abc_DEF-123", nil},
		{"../../etc/passwd", ErrMalformed},
		{"a/b", ErrMalformed},
		{"a b", ErrMalformed},
		{strings.Repeat("a", MaxLength+1), ErrMalformed},
	}

	for _, tt := range tests {
		err := Validate(tt.tok)
		if !errors.Is(err, tt.want) {
			t.Errorf("Validate(%q): ожидалось %v, получено %v", tt.tok, tt.want, err)
		}
	}
}

func TestValidateBundleID(t *testing.T) {
	id := NewBundleID()
	got, err := ValidateBundleID(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got != id {
		t.Errorf("каноническая форма: ожидалось %s, получено %s", id, got)
	}

	if _, err := ValidateBundleID("not-a-uuid"); !errors.Is(err, ErrMalformed) {
		t.Errorf("ожидалась ErrMalformed, получено %v", err)
	}
	if _, err := ValidateBundleID(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("ожидалась ErrEmpty, получено %v", err)
	}
}
