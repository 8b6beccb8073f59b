package signup

import "github.com/prometheus/client_golang/prometheus"

var (
	signups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signup_requests_total",
		Help: "Signup requests by outcome.",
	}, []string{"outcome"})

	completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signup_completions_total",
		Help: "Signup completion attempts by outcome.",
	}, []string{"outcome"})
)

// Collectors returns the package metrics for registration
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{signups, completions}
}
