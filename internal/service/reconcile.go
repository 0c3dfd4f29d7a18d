// reconcile.go — сервис поиска «осиротевших» payload.
//
// Если запись метаданных при загрузке не удалась, payload остаётся без
// sidecar и purge его не увидит. Сервис только сообщает о таких файлах
// (лог + gauge fd_reconcile_orphans) и ничего не удаляет: решение об
// удалении остаётся за оператором.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/filedrop/internal/scheduler"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// Prometheus метрики reconcile
var (
	// reconcileOrphans — количество payload без метаданных на момент последней сверки.
	reconcileOrphans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fd_reconcile_orphans",
		Help: "Количество payload без метаданных",
	})

	// reconcileDurationSeconds — длительность сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fd_reconcile_duration_seconds",
		Help:    "Длительность сверки хранилища в секундах",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ReconcileResult — результат сверки.
type ReconcileResult struct {
	Provider string `json:"provider"`
	// Supported — провайдер умеет искать осиротевшие payload
	Supported bool     `json:"supported"`
	Orphans   []string `json:"orphans"`
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	providers ProviderSource
	logger    *slog.Logger

	mu sync.Mutex // защита от параллельного запуска
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(providers ProviderSource, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		providers: providers,
		logger:    logger.With(slog.String("component", "reconcile")),
	}
}

// RunOnce выполняет одну сверку.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	defer func() { reconcileDurationSeconds.Observe(time.Since(start).Seconds()) }()

	logger := rs.logger
	if runID := scheduler.RunID(ctx); runID != "" {
		logger = logger.With(slog.String("run_id", runID))
	}

	provider, err := rs.providers.Get()
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{Provider: provider.Name(), Orphans: []string{}}

	lister, ok := provider.(storage.OrphanLister)
	if !ok {
		logger.Debug("Провайдер не поддерживает поиск осиротевших payload",
			slog.String("provider", provider.Name()),
		)
		reconcileOrphans.Set(0)
		return result, nil
	}
	result.Supported = true

	orphans, err := lister.Orphans(ctx)
	if err != nil {
		logger.Error("Ошибка сверки хранилища", slog.String("error", err.Error()))
		return nil, err
	}
	if orphans != nil {
		result.Orphans = orphans
	}

	reconcileOrphans.Set(float64(len(orphans)))
	for _, tok := range orphans {
		logger.Warn("Payload без метаданных",
			slog.String("provider", provider.Name()),
			slog.String("token", tok),
		)
	}
	logger.Info("Сверка завершена",
		slog.String("provider", provider.Name()),
		slog.Int("orphans", len(orphans)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Job возвращает задачу для планировщика.
func (rs *ReconcileService) Job() scheduler.Job {
	return func(ctx context.Context) {
		_, _ = rs.RunOnce(ctx)
	}
}
