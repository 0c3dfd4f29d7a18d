// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/config"
	"github.com/bigkaa/goartstore/filedrop/internal/storage"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// pingTimeout — таймаут проверки хранилища в readiness.
const pingTimeout = 3 * time.Second

// ProviderGetter — источник активного провайдера хранилища.
type ProviderGetter interface {
	Get() (storage.Provider, error)
}

// DependencyChecker — состояние внешних зависимостей (topologymetrics).
type DependencyChecker interface {
	Healthy() bool
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version   string
	providers ProviderGetter
	// deps — nil, если мониторинг зависимостей не запущен
	deps DependencyChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(providers ProviderGetter, deps DependencyChecker) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		providers: providers,
		deps:      deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filedrop",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: активный провайдер хранилища, внешние зависимости.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	storageCheck := h.checkStorage(r.Context())
	if storageCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	checks := map[string]any{
		"storage": storageCheck,
	}

	if h.deps != nil {
		depsCheck := map[string]any{"status": "ok", "dependencies": h.deps.Health()}
		if !h.deps.Healthy() {
			depsCheck["status"] = statusFail
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
		checks["dependencies"] = depsCheck
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filedrop",
		"checks":    checks,
	})
}

// checkStorage проверяет, что провайдер создаётся и хранилище доступно.
func (h *HealthHandler) checkStorage(ctx context.Context) map[string]any {
	provider, err := h.providers.Get()
	if err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Провайдер хранилища недоступен: " + err.Error(),
		}
	}

	pinger, ok := provider.(storage.Pinger)
	if !ok {
		return map[string]any{
			"status":   "ok",
			"provider": provider.Name(),
			"message":  "Проверка не поддерживается",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		return map[string]any{
			"status":   statusFail,
			"provider": provider.Name(),
			"message":  "Хранилище недоступно",
		}
	}

	return map[string]any{
		"status":   "ok",
		"provider": provider.Name(),
	}
}
