package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	NoticesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campusevents_notices_dispatched_total", Help: "Total notices accepted by the dispatcher"},
		[]string{"kind"},
	)
	NoticesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campusevents_notices_dropped_total", Help: "Total notices dropped because the queue was full or shutdown ran out of time"},
	)
	NoticesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campusevents_notices_failed_total", Help: "Total notice deliveries that failed"},
		[]string{"channel"},
	)
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campusevents_emails_sent_total", Help: "Total notice emails sent"},
	)
	SweepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campusevents_sweep_transitions_total", Help: "Total lifecycle transitions applied by the sweeper"},
		[]string{"status"},
	)
	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "campusevents_sweep_failures_total", Help: "Total events the sweeper failed to advance"},
	)
)

func Register() {
	prometheus.MustRegister(NoticesDispatched, NoticesDropped, NoticesFailed, EmailsSent, SweepTransitions, SweepFailures)
}
