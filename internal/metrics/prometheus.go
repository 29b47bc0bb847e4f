package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	CodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kerja_code_requests_total",
		Help: "Total number of one-time codes requested from the provider.",
	})
	CodeRequestFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kerja_code_request_failures_total",
		Help: "Total number of failed one-time code requests.",
	})
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kerja_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kerja_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kerja_active_sessions_gauge",
		Help: "Current number of issued sessions.",
	})
)

// Register registers the custom metrics on reg. It should be called once
// at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	collectors := []prometheus.Collector{
		CodeRequestsTotal,
		CodeRequestFailureTotal,
		LoginSuccessTotal,
		LoginFailureTotal,
		ActiveSessionsGauge,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			log.Warn().Err(err).Msg("failed to register metric")
		}
	}
}
