package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// minioHealthServer имитирует health endpoint объектного хранилища.
func minioHealthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ObjectStoreHealthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestObjectStoreURL(t *testing.T) {
	if got := ObjectStoreURL("minio:9000", false); got != "http://minio:9000" {
		t.Errorf("получено %s", got)
	}
	if got := ObjectStoreURL("s3.amazonaws.com", true); got != "https://s3.amazonaws.com" {
		t.Errorf("получено %s", got)
	}
	if got := ObjectStoreURL("http://x:1", true); got != "http://x:1" {
		t.Errorf("URL со схемой не должен меняться: %s", got)
	}
}

func TestDephealthService_Healthy(t *testing.T) {
	srv := minioHealthServer(t, http.StatusOK)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer("filedrop-test-01", srv.URL, time.Second, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	defer ds.Stop()

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	found := false
	for key, val := range ds.Health() {
		if strings.HasPrefix(key, "object-store:") {
			found = true
			if !val {
				t.Errorf("object-store health = false для ключа %q", key)
			}
		}
	}
	if !found {
		t.Errorf("Нет записи object-store в Health(): %v", ds.Health())
	}
	if !ds.Healthy() {
		t.Error("Healthy() = false для здорового хранилища")
	}
}

func TestDephealthService_Unhealthy(t *testing.T) {
	srv := minioHealthServer(t, http.StatusServiceUnavailable)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer("filedrop-test-02", srv.URL, time.Second, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}
	defer ds.Stop()

	time.Sleep(3 * time.Second)

	if ds.Healthy() {
		t.Errorf("Healthy() = true при ответе 503: %v", ds.Health())
	}
}
