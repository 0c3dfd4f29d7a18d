// maintenance.go — обработчики POST /api/v1/maintenance/{purge,reconcile}.
// Делегируют запуск в PurgeService и ReconcileService.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/filedrop/internal/api/errors"
	"github.com/bigkaa/goartstore/filedrop/internal/service"
)

// PurgeRunner — запуск одного прохода purge.
type PurgeRunner interface {
	RunOnce(ctx context.Context) (*service.PurgeResult, error)
}

// ReconcileRunner — запуск одной сверки хранилища.
type ReconcileRunner interface {
	RunOnce(ctx context.Context) (*service.ReconcileResult, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	purger     PurgeRunner
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(purger PurgeRunner, reconciler ReconcileRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		purger:     purger,
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "http")),
	}
}

// Purge обрабатывает POST /api/v1/maintenance/purge.
// Синхронно удаляет истёкшие записи и возвращает их локаторы.
func (h *MaintenanceHandler) Purge(w http.ResponseWriter, r *http.Request) {
	result, err := h.purger.RunOnce(r.Context())
	if err != nil {
		apierrors.WriteStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reconcile обрабатывает POST /api/v1/maintenance/reconcile.
// Только отчёт: осиротевшие payload не удаляются.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		apierrors.WriteStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
