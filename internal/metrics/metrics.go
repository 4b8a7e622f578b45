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
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marrow",
			Name:      "replies_total",
			Help:      "Replies sent to chat, by category and rule.",
		},
		[]string{"category", "rule"},
	)

	AmbientMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marrow",
			Name:      "ambient_messages_total",
			Help:      "Unsolicited messages sent by ambient routines.",
		},
		[]string{"routine"},
	)

	LLMFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marrow",
			Name:      "llm_failures_total",
			Help:      "Generative backend calls that failed or timed out.",
		},
	)

	ChannelOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marrow",
			Name:      "channel_occupancy",
			Help:      "Members present at the last occupancy check.",
		},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
