// Package metrics exposes Prometheus instrumentation for chat sessions.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Send pipeline metrics
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ren_sends_total",
			Help: "Total send attempts by outcome",
		},
		[]string{"outcome"}, // delivered, failed, ignored, busy, discarded
	)

	ReplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ren_reply_duration_seconds",
			Help:    "Reply generation latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Pagination metrics
	HistoryPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ren_history_pages_total",
			Help: "Total history page loads by result",
		},
		[]string{"result"}, // loaded, failed, skipped, discarded
	)

	HistoryMessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ren_history_messages_appended_total",
			Help: "History messages added to timelines after dedup",
		},
	)

	HistoryDuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ren_history_duplicates_skipped_total",
			Help: "History messages skipped because their id was already present",
		},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ren_active_sessions",
			Help: "Open chat sessions",
		},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
