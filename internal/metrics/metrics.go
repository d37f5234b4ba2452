package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	customersAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "queue_customers_total",
			Help:      "Customers admitted, by resulting status.",
		},
		[]string{"status"},
	)

	promotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "queue_promotions_total",
			Help:      "Waiting entries promoted to seated.",
		},
	)

	pushSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waitline",
			Name:      "push_sent_total",
			Help:      "Push notification dispatch attempts, by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, customersAdded, promotions, pushSent)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncCustomerAdded increments the admission counter for a status label.
func IncCustomerAdded(status string) {
	customersAdded.WithLabelValues(status).Inc()
}

// IncPromotion increments the promotion counter.
func IncPromotion() {
	promotions.Inc()
}

// IncPushSent increments the push dispatch counter for a result label.
func IncPushSent(result string) {
	pushSent.WithLabelValues(result).Inc()
}
