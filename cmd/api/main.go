package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodsim/internal/api"
	"foodsim/internal/config"
	"foodsim/internal/event"
	"foodsim/internal/metrics"
	"foodsim/internal/model"
	"foodsim/internal/runner"
	"foodsim/internal/sim"
	"foodsim/internal/store"
	"foodsim/internal/webhooks"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	dumpConfig := flag.String("dump-config", "", "write the effective config to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("config env: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if *dumpConfig != "" {
		if err := cfg.Save(*dumpConfig); err != nil {
			log.Fatalf("dump config: %v", err)
		}
		log.Printf("config written to %s", *dumpConfig)
		return
	}
	metrics.RegisterDefault()

	archive, err := api.OpenArchive(cfg.Server)
	if err != nil {
		log.Fatalf("failed to open archive: %v", err)
	}
	writer := store.NewWriter(archive, 256)
	writer.Start()

	broker := api.OpenBroker(cfg.Server)
	pub := api.NewPublisher(broker, 1024)
	pub.Start()

	var hooks *webhooks.Sender
	if cfg.Server.WebhookURL != "" {
		hooks = webhooks.NewSender(cfg.Server.WebhookURL, cfg.Server.WebhookSecret, 256)
		hooks.Start()
	}
	onComplete := func(o model.Order) {
		writer.Enqueue(o)
		if hooks != nil {
			hooks.Send(event.OrderCompleted, o)
		}
	}

	sys, err := sim.New(cfg, sim.WithEvents(pub), sim.WithArchive(onComplete))
	if err != nil {
		log.Fatalf("failed to init simulation: %v", err)
	}
	run := runner.New(sys, cfg.Sim.TickInterval, cfg.Sim.TimeSpeed)
	run.Start()

	srvDeps := api.NewServer(cfg, sys, archive, broker, run)
	mux := http.NewServeMux()

	// Orders
	mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)
	mux.HandleFunc("/v1/orders/", srvDeps.OrderByIDHandler) // includes /completed
	mux.HandleFunc("/v1/menu", srvDeps.MenuHandler)
	mux.HandleFunc("/v1/auto-orders", srvDeps.AutoOrdersHandler)

	// Staff
	mux.HandleFunc("/v1/couriers", srvDeps.CouriersHandler)
	mux.HandleFunc("/v1/couriers/", srvDeps.CouriersHandler)
	mux.HandleFunc("/v1/kitcheners", srvDeps.KitchenersHandler)
	mux.HandleFunc("/v1/kitcheners/", srvDeps.KitchenersHandler)
	mux.HandleFunc("/v1/kitchen/queues", srvDeps.KitchenQueuesHandler)

	// Map and routing
	mux.HandleFunc("/v1/map", srvDeps.MapHandler)
	mux.HandleFunc("/v1/map/vertices", srvDeps.VerticesHandler)
	mux.HandleFunc("/v1/map/vertices/", srvDeps.VerticesHandler)
	mux.HandleFunc("/v1/map/edges", srvDeps.EdgesHandler)
	mux.HandleFunc("/v1/path", srvDeps.PathHandler)

	// Clock and state
	mux.HandleFunc("/v1/clock", srvDeps.ClockHandler)
	mux.HandleFunc("/v1/clock/tick", srvDeps.ClockHandler)
	mux.HandleFunc("/v1/stats", srvDeps.StatsHandler)

	// Events
	mux.HandleFunc("/v1/events/stream", srvDeps.EventsStreamHandler)
	mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

	// Health, docs, debug
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)
	mux.HandleFunc("/debug/info", srvDeps.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	limiter := api.NewRateLimiter(cfg.Server.RateRPS, cfg.Server.RateBurst)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(limiter.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Printf("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	run.Close()
	pub.Close()
	writer.Close()
	if hooks != nil {
		hooks.Close()
	}
	if c, ok := broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if err := archive.Close(); err != nil {
		log.Printf("archive close: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		labels := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status)}
		metrics.HTTPRequests.WithLabelValues(labels...).Inc()
		metrics.HTTPDuration.WithLabelValues(labels...).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}

// routeLabel collapses ids so the path label keeps a bounded cardinality.
func routeLabel(path string) string {
	for _, prefix := range []string{"/v1/orders/", "/v1/couriers/", "/v1/kitcheners/", "/v1/map/vertices/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) && path != "/v1/orders/completed" {
			return prefix + "{id}"
		}
	}
	return path
}
