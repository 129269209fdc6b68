package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chat metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lusa_chat_requests_total",
		Help: "Total number of tutor chat requests",
	}, []string{"status"})

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lusa_chat_latency_seconds",
		Help:    "Tutor chat round-trip latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lusa_tts_requests_total",
		Help: "Total number of speech synthesis requests by outcome",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lusa_tts_latency_seconds",
		Help:    "Speech synthesis latency in seconds, including retries",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	voiceCooldown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lusa_voice_cooldown_seconds",
		Help: "Seconds left before speech synthesis is allowed again",
	})

	// Playback metrics
	buffersScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lusa_audio_buffers_scheduled_total",
		Help: "Total number of PCM buffers scheduled for playback",
	})

	playbackStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lusa_audio_playback_stops_total",
		Help: "Total number of forced playback stops",
	})

	// Live metrics
	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lusa_live_sessions_active",
		Help: "Number of live voice sessions in progress",
	})

	liveEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lusa_live_events_total",
		Help: "Live session server events by type",
	}, []string{"type"})
)

// RecordChatRequest records a chat request outcome.
func RecordChatRequest(status string, d time.Duration) {
	chatRequests.WithLabelValues(status).Inc()
	if d > 0 {
		chatLatency.Observe(d.Seconds())
	}
}

// RecordTTSRequest records a synthesis outcome. Zero durations are requests
// that never reached the provider and are left out of the latency histogram.
func RecordTTSRequest(status string, d time.Duration) {
	ttsRequests.WithLabelValues(status).Inc()
	if d > 0 {
		ttsLatency.Observe(d.Seconds())
	}
}

// SetVoiceCooldown publishes the remaining cooldown.
func SetVoiceCooldown(remaining time.Duration) {
	voiceCooldown.Set(remaining.Seconds())
}

// RecordBufferScheduled counts one scheduled playback buffer.
func RecordBufferScheduled() {
	buffersScheduled.Inc()
}

// RecordPlaybackStop counts one forced stop.
func RecordPlaybackStop() {
	playbackStops.Inc()
}

// LiveSessionStarted increments the live session gauge.
func LiveSessionStarted() {
	liveSessions.Inc()
}

// LiveSessionEnded decrements the live session gauge.
func LiveSessionEnded() {
	liveSessions.Dec()
}

// RecordLiveEvent counts a live server event.
func RecordLiveEvent(kind string) {
	liveEvents.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Debug("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
