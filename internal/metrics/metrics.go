package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reason labels for SessionsFailed.
const (
	ReasonAuth        = "auth"
	ReasonAcquisition = "acquisition"
	ReasonConnect     = "connect"
	ReasonOther       = "other"
)

// Segment kind labels for SegmentsReceived.
const (
	KindPartial   = "partial"
	KindCommitted = "committed"
)

// Metrics aggregates the Prometheus instruments for the daemon. All
// instruments register on the default registry and are exposed on /metrics.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsFailed   *prometheus.CounterVec
	SessionActive    prometheus.Gauge
	SessionDuration  prometheus.Histogram
	FramesSent       prometheus.Counter
	SegmentsReceived *prometheus.CounterVec
	NotesSaved       prometheus.Counter
	NoteSearches     prometheus.Counter
}

// New creates and registers the instrument set.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "sessions_started_total",
			Help:      "Dictation sessions that reached the listening state.",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "sessions_failed_total",
			Help:      "Dictation connect attempts that failed, by reason.",
		}, []string{"reason"}),
		SessionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxnote",
			Name:      "session_active",
			Help:      "1 while a dictation session is connecting, listening, or processing.",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxnote",
			Name:      "session_duration_seconds",
			Help:      "Length of completed dictation sessions.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "audio_frames_sent_total",
			Help:      "Audio frames transmitted on the transcription socket.",
		}),
		SegmentsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "transcript_segments_total",
			Help:      "Transcript segments received, by kind.",
		}, []string{"kind"}),
		NotesSaved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "notes_saved_total",
			Help:      "Finished dictations persisted as notes.",
		}),
		NoteSearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "voxnote",
			Name:      "note_searches_total",
			Help:      "Semantic note searches served.",
		}),
	}
}

// RegisterClientGauge exposes the current dashboard client count. The count
// function is sampled at scrape time.
func RegisterClientGauge(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "voxnote",
		Name:      "websocket_clients",
		Help:      "Connected dashboard clients.",
	}, func() float64 {
		return float64(count())
	})
}
