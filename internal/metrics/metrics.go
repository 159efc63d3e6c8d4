// Package metrics отдаёт метрики Prometheus по HTTP.
// Сами счётчики объявлены рядом с кодом, который они измеряют.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// NewServer создаёт HTTP-сервер с /metrics на addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve слушает addr, пока не отменят ctx. Пустой addr — метрики выключены.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	srv := NewServer(addr)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Метрики доступны на /metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
