package settings

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher следит за файлом настроек и вызывает Reload при изменении.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	reload  func() error
	logger  *slog.Logger
}

// NewWatcher создаёт наблюдатель за path. Следит за директорией,
// чтобы переживать замену файла через rename (редакторы, ConfigMap).
func NewWatcher(path string, reload func() error, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		watcher: fw,
		path:    filepath.Clean(path),
		reload:  reload,
		logger:  logger.With(slog.String("component", "settings_watcher")),
	}, nil
}

// Run обрабатывает события до отмены ctx. Блокирующий.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	w.logger.Info("Наблюдение за файлом настроек запущено", slog.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Наблюдение за файлом настроек остановлено")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("Файл настроек изменён",
					slog.String("op", event.Op.String()),
				)
				// Ошибка уже залогирована Store.Reload
				_ = w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Ошибка наблюдения за файлом настроек",
				slog.String("error", err.Error()),
			)
		}
	}
}
