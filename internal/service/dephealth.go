// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// filedrop мониторит:
//   - объектное хранилище (HTTP GET /minio/health/live, critical),
//     если storage.location = s3 на момент старта
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks" // Регистрация фабрик checker-ов (HTTP и др.)
	"github.com/prometheus/client_golang/prometheus"
)

// ObjectStoreHealthPath — health endpoint MinIO / S3-совместимого хранилища.
const ObjectStoreHealthPath = "/minio/health/live"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// ObjectStoreURL строит URL объектного хранилища из endpoint без схемы.
func ObjectStoreURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// NewDephealthService создаёт сервис мониторинга объектного хранилища.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceName — имя вершины графа текущего приложения (FD_SERVICE_NAME)
//   - storeURL — URL объектного хранилища (см. ObjectStoreURL)
//   - checkInterval — интервал проверки (FD_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceName string,
	storeURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceName, storeURL, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceName string,
	storeURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceName, storeURL, checkInterval, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceName string,
	storeURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	depOpts := []dephealth.DependencyOption{
		dephealth.FromURL(storeURL),
		dephealth.WithHTTPHealthPath(ObjectStoreHealthPath),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
	}
	if strings.HasPrefix(storeURL, "https://") {
		depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP("object-store", depOpts...),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceName, "filedrop", opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// Healthy возвращает true, если все зависимости в состоянии ok.
// До первой проверки состояние считается здоровым.
func (ds *DephealthService) Healthy() bool {
	for _, ok := range ds.dh.Health() {
		if !ok {
			return false
		}
	}
	return true
}
