package settings

import (
	"log/slog"
	"sync/atomic"
)

// Source — узкий интерфейс чтения текущих настроек.
type Source interface {
	Current() *Settings
}

// Static — неизменяемый Source (тесты, одноразовые команды).
type Static struct {
	S *Settings
}

// Current возвращает настройки.
func (s Static) Current() *Settings {
	return s.S
}

// Store хранит текущий снимок настроек и перечитывает его по запросу.
type Store struct {
	current atomic.Pointer[Settings]
	loader  *Loader
	logger  *slog.Logger
}

// NewStore загружает настройки. Ошибка первичной загрузки фатальна.
func NewStore(loader *Loader, logger *slog.Logger) (*Store, error) {
	s, err := loader.Load()
	if err != nil {
		return nil, err
	}

	st := &Store{
		loader: loader,
		logger: logger.With(slog.String("component", "settings")),
	}
	st.current.Store(s)
	return st, nil
}

// Current возвращает текущий снимок настроек.
func (st *Store) Current() *Settings {
	return st.current.Load()
}

// Reload перечитывает настройки. При ошибке остаётся прежний снимок.
func (st *Store) Reload() error {
	s, err := st.loader.Load()
	if err != nil {
		st.logger.Error("Не удалось перечитать настройки, используются прежние",
			slog.String("error", err.Error()),
		)
		return err
	}

	prev := st.current.Swap(s)
	st.logger.Info("Настройки перечитаны",
		slog.String("storage_location", s.Storage.Location),
		slog.Bool("encryption_enabled", s.Security.EncryptionEnabled),
		slog.Int("retention", s.General.Retention),
		slog.String("retention_unit", s.General.RetentionUnit),
		slog.Bool("location_changed", prev == nil || prev.Storage.Location != s.Storage.Location),
	)
	return nil
}
