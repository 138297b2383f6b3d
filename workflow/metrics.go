package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "documents",
		Name:      "reconcile_total",
		Help:      "Document saves by result (success, partial, no_changes, invalid).",
	}, []string{"result"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleet",
		Subsystem: "documents",
		Name:      "reconcile_duration_seconds",
		Help:      "Wall-clock duration of one document save.",
		Buckets:   prometheus.DefBuckets,
	})

	documentWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "documents",
		Name:      "writes_total",
		Help:      "Repository writes by operation and status.",
	}, []string{"op", "status"})

	attachmentUploadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "attachments",
		Name:      "upload_failures_total",
		Help:      "Attachments that failed to reach the blob store.",
	})

	attachmentDeleteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "attachments",
		Name:      "delete_failures_total",
		Help:      "Best-effort blob deletes that failed.",
	})

	skippedIncompleteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "documents",
		Name:      "skipped_incomplete_total",
		Help:      "Rows skipped because an attachment had no expiry date.",
	})

	auditPublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fleet",
		Subsystem: "audit",
		Name:      "publish_failures_total",
		Help:      "Audit entries written but not published to Pub/Sub.",
	})
)
