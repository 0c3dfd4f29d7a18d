// purge.go — сервис удаления истёкших загрузок.
//
// Запускается планировщиком по cron-выражению FD_PURGE_CRON, вручную
// через POST /api/v1/maintenance/purge или командой `filedrop purge`.
// Провайдер выбирается заново при каждом запуске.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/filedrop/internal/scheduler"
)

// Prometheus метрики purge
var (
	// purgeRunsTotal — количество запусков purge.
	purgeRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_purge_runs_total",
		Help: "Общее количество запусков purge",
	})

	// purgeDeletedTotal — количество удалённых истёкших записей.
	purgeDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_purge_deleted_total",
		Help: "Общее количество записей, удалённых purge",
	})

	// purgeErrorsTotal — количество запусков, завершившихся ошибкой.
	purgeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_purge_errors_total",
		Help: "Общее количество запусков purge с ошибкой",
	})

	// purgeDurationSeconds — длительность выполнения purge.
	purgeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fd_purge_duration_seconds",
		Help:    "Длительность выполнения purge в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// PurgeResult — результат одного запуска purge.
type PurgeResult struct {
	// Provider — имя провайдера, на котором выполнялся purge
	Provider string `json:"provider"`
	// Deleted — локаторы удалённых записей
	Deleted []string `json:"deleted"`
	// Duration — длительность выполнения
	Duration time.Duration `json:"-"`
}

// PurgeService — сервис удаления истёкших записей.
type PurgeService struct {
	providers ProviderSource
	logger    *slog.Logger

	mu sync.Mutex // запуски одного процесса выполняются последовательно
}

// NewPurgeService создаёт сервис purge.
func NewPurgeService(providers ProviderSource, logger *slog.Logger) *PurgeService {
	return &PurgeService{
		providers: providers,
		logger:    logger.With(slog.String("component", "purge")),
	}
}

// RunOnce выполняет один проход purge.
// Ошибки отдельных записей провайдер логирует сам и не возвращает.
func (ps *PurgeService) RunOnce(ctx context.Context) (*PurgeResult, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	start := time.Now()
	purgeRunsTotal.Inc()

	logger := ps.logger
	if runID := scheduler.RunID(ctx); runID != "" {
		logger = logger.With(slog.String("run_id", runID))
	}

	provider, err := ps.providers.Get()
	if err != nil {
		purgeErrorsTotal.Inc()
		logger.Error("Purge: не удалось получить провайдер", slog.String("error", err.Error()))
		return nil, err
	}

	deleted, err := provider.Purge(ctx)
	result := &PurgeResult{
		Provider: provider.Name(),
		Deleted:  deleted,
		Duration: time.Since(start),
	}
	if result.Deleted == nil {
		result.Deleted = []string{}
	}

	purgeDeletedTotal.Add(float64(len(deleted)))
	purgeDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		purgeErrorsTotal.Inc()
		logger.Error("Purge прерван",
			slog.String("provider", result.Provider),
			slog.Int("deleted", len(deleted)),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	logger.Info("Purge завершён",
		slog.String("provider", result.Provider),
		slog.Int("deleted", len(deleted)),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// Job возвращает задачу для планировщика.
func (ps *PurgeService) Job() scheduler.Job {
	return func(ctx context.Context) {
		// Ошибка уже залогирована
		_, _ = ps.RunOnce(ctx)
	}
}
