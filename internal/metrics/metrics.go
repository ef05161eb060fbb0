package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ResumeSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "resume_saves_total",
		Help:      "Resume data blobs written, by trigger (throttled or forced).",
	}, []string{"trigger"})

	ResumeSkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "resume_skips_total",
		Help:      "Resume data blobs dropped by the sync interval throttle.",
	})

	ResumeSaveFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "resume_save_failures_total",
		Help:      "Resume data writes that failed.",
	})

	CleanupDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "cleanup_deleted_files_total",
		Help:      "Incomplete files and parts artifacts deleted after removal.",
	})

	CleanupFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "cleanup_failures_total",
		Help:      "Deletes that failed during post-removal cleanup.",
	})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "torrentctl",
		Name:      "engine_events_total",
		Help:      "Engine events handled by download controllers, by kind.",
	}, []string{"kind"})

	ActiveTorrents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "torrentctl",
		Name:      "active_torrents",
		Help:      "Number of torrents with a live controller.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ResumeSavesTotal,
		ResumeSkipsTotal,
		ResumeSaveFailuresTotal,
		CleanupDeletedTotal,
		CleanupFailuresTotal,
		EventsTotal,
		ActiveTorrents,
	)
}
