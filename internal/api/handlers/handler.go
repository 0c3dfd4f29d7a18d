// handler.go — APIHandler собирает доменные handlers и регистрирует
// маршруты HTTP API в chi-роутере.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	transfer    *TransferHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	transfer *TransferHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		transfer:    transfer,
		maintenance: maintenance,
		health:      health,
	}
}

// Register монтирует маршруты в роутер.
func (h *APIHandler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", h.transfer.Upload)
		r.Post("/bundle", h.transfer.FinalizeBundle)
		r.Get("/bundle/{token}/archive", h.transfer.Archive)
		r.Get("/download/{token}", h.transfer.Download)
		r.Get("/info/{token}", h.transfer.Info)

		r.Post("/maintenance/purge", h.maintenance.Purge)
		r.Post("/maintenance/reconcile", h.maintenance.Reconcile)
	})

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
