package emailverification

import "github.com/prometheus/client_golang/prometheus"

var emailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "verification_emails_total",
	Help: "Verification emails handed to the delivery provider, by outcome.",
}, []string{"outcome"})

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{emailsSent}
}
