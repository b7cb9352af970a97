package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "rate_limit_allowed_total", Help: "Number of allowed login attempts by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "rate_limit_rejected_total", Help: "Number of rejected login attempts by limiter type."},
		[]string{"limiter"},
	)
	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "session_events_total", Help: "Identity provider events handled by the session store."},
		[]string{"event"},
	)
	ProfileFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "profile_fetch_failures_total", Help: "Profile reads that failed and degraded to no profile."},
	)
	NotificationsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "notifications_received_total", Help: "Notifications delivered over the realtime subscription."},
	)
	NotificationsUnread = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "auditdesk", Name: "notifications_unread", Help: "Unread notifications in the current feed."},
	)
	RemoteWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "remote_write_failures_total", Help: "Failed backend writes by operation."},
		[]string{"op"},
	)
	RelayForwarded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "auditdesk", Name: "relay_forwarded_total", Help: "Inserted rows forwarded by the realtime relay."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		RateLimitAllowed,
		RateLimitRejected,
		SessionEvents,
		ProfileFetchFailures,
		NotificationsReceived,
		NotificationsUnread,
		RemoteWriteFailures,
		RelayForwarded,
	)
}
