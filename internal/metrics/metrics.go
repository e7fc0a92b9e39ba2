package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the simulator
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PathSearches counts path finder runs by mode (path, tour) and result
	PathSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "foodsim_path_searches_total", Help: "Path finder searches by mode and result."},
		[]string{"kind", "result"},
	)
	// PathLabels tracks how many labels a search created
	PathLabels = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "foodsim_path_labels", Help: "Labels created per path search.", Buckets: prometheus.ExponentialBuckets(4, 4, 8)},
		[]string{"kind"},
	)

	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "foodsim_orders_created_total", Help: "Orders accepted by the simulation."},
	)
	OrdersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "foodsim_orders_completed_total", Help: "Orders that reached completed."},
	)
	// OrderLeadTime is simulated seconds from creation to completion
	OrderLeadTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "foodsim_order_lead_time_seconds", Help: "Simulated time from order creation to completion.", Buckets: []float64{300, 600, 900, 1200, 1800, 2700, 3600, 5400, 7200}},
	)
	// WorkerPhases is the number of workers per role and phase after the last tick
	WorkerPhases = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "foodsim_worker_phase", Help: "Workers by role and phase."},
		[]string{"role", "phase"},
	)
	// WebhookDeliveries counts webhook POSTs by result (ok, retry, failed, dropped)
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "foodsim_webhook_deliveries_total", Help: "Webhook delivery attempts by result."},
		[]string{"result"},
	)
	// SimTicks counts simulation steps driven by the runner
	SimTicks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "foodsim_ticks_total", Help: "Simulation ticks."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PathSearches)
		Registry.MustRegister(PathLabels)
		Registry.MustRegister(OrdersCreated)
		Registry.MustRegister(OrdersCompleted)
		Registry.MustRegister(OrderLeadTime)
		Registry.MustRegister(WorkerPhases)
		Registry.MustRegister(SimTicks)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
