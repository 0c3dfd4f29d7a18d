package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bigkaa/goartstore/filedrop/internal/api/handlers"
	"github.com/bigkaa/goartstore/filedrop/internal/config"
	"github.com/bigkaa/goartstore/filedrop/internal/scheduler"
	"github.com/bigkaa/goartstore/filedrop/internal/server"
	"github.com/bigkaa/goartstore/filedrop/internal/service"
	"github.com/bigkaa/goartstore/filedrop/internal/settings"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
	"github.com/bigkaa/goartstore/filedrop/internal/storage/factory"
)

// schedulerStopTimeout — ожидание выполняющихся задач при остановке.
const schedulerStopTimeout = 30 * time.Second

// App создаёт CLI-приложение filedrop.
func App() *cli.App {
	return &cli.App{
		Name:    "filedrop",
		Usage:   "Временный обмен файлами с локальным или S3-хранилищем",
		Version: config.Version,
		Commands: []*cli.Command{
			serveCommand(),
			purgeCommand(),
			versionCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Запустить HTTP API и фоновые задачи",
		Action: runServe,
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:   "purge",
		Usage:  "Однократно удалить истёкшие загрузки и выйти",
		Action: runPurge,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Показать версию",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintln(c.App.Writer, config.Version)
			return err
		},
	}
}

// bootstrap загружает конфигурацию процесса, логгер и настройки хранилища.
func bootstrap() (*config.Config, *slog.Logger, *settings.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("конфигурация: %w", err)
	}

	logger := config.SetupLogger(cfg)

	store, err := settings.NewStore(settings.NewLoader(cfg.SettingsFile), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("настройки хранилища: %w", err)
	}
	return cfg, logger, store, nil
}

func runServe(c *cli.Context) error {
	cfg, logger, store, err := bootstrap()
	if err != nil {
		return err
	}

	current := store.Current()
	logger.Info("filedrop запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", current.Storage.Location),
		slog.Bool("encryption", current.Security.EncryptionEnabled),
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Инициализация компонентов ---

	// 1. Фабрика провайдеров: ошибка конфигурации хранилища фатальна на старте
	providers := factory.New(store, logger)
	if _, err := providers.Get(); err != nil {
		return fmt.Errorf("провайдер хранилища: %w", err)
	}

	// 2. Сервисы
	transferSvc := service.NewTransferService(providers, logger)
	purgeSvc := service.NewPurgeService(providers, logger)
	reconcileSvc := service.NewReconcileService(providers, logger)

	// 3. Планировщик
	sched := scheduler.New(logger)
	if !sched.Add("purge", cfg.PurgeCron, purgeSvc.Job()) {
		return fmt.Errorf("не удалось зарегистрировать purge: %q", cfg.PurgeCron)
	}
	if cfg.ReconcileCron != "" {
		if !sched.Add("reconcile", cfg.ReconcileCron, reconcileSvc.Job()) {
			return fmt.Errorf("не удалось зарегистрировать сверку: %q", cfg.ReconcileCron)
		}
	}
	sched.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	// 4. Перечитывание настроек при изменении файла
	if cfg.SettingsFile != "" {
		watcher, err := settings.NewWatcher(cfg.SettingsFile, store.Reload, logger)
		if err != nil {
			logger.Warn("Наблюдение за файлом настроек недоступно",
				slog.String("path", cfg.SettingsFile),
				slog.String("error", err.Error()),
			)
		} else {
			go watcher.Run(ctx)
		}
	}

	// 5. topologymetrics — мониторинг объектного хранилища
	var deps handlers.DependencyChecker
	if current.Storage.Location == storage.LocationS3 {
		storeURL := service.ObjectStoreURL(current.Storage.S3.Endpoint, current.Storage.S3.UseSSL)
		dephealthSvc, err := service.NewDephealthService(cfg.ServiceName, storeURL, cfg.DephealthCheckInterval, logger)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
		} else if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		} else {
			defer dephealthSvc.Stop()
			deps = dephealthSvc
			logger.Info("topologymetrics запущен",
				slog.String("url", storeURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 6. Handlers и HTTP-сервер
	api := handlers.NewAPIHandler(
		handlers.NewTransferHandler(transferSvc, cfg.TempDir, cfg.MaxFileSize, logger),
		handlers.NewMaintenanceHandler(purgeSvc, reconcileSvc, logger),
		handlers.NewHealthHandler(providers, deps),
	)

	return server.New(cfg, logger, api).Run(ctx)
}

// runPurge выполняет один проход purge и печатает удалённые локаторы.
func runPurge(c *cli.Context) error {
	_, logger, store, err := bootstrap()
	if err != nil {
		return err
	}

	result, err := service.NewPurgeService(factory.New(store, logger), logger).RunOnce(c.Context)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
