package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot
type Metrics struct {
	registry *prometheus.Registry

	// Telegram metrics
	MessagesSentTotal     prometheus.Counter
	MessagesReceivedTotal prometheus.Counter
	CallbacksTotal        prometheus.Counter
	SendErrorsTotal       prometheus.Counter

	// Navigation metrics
	EventDuration   *prometheus.HistogramVec
	InvalidActions  prometheus.Counter
	ExpiredSessions prometheus.Counter

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsEvicted prometheus.Counter

	// Delivery metrics
	DeliveriesTotal  *prometheus.CounterVec
	FilesTotal       *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram

	// Catalog metrics
	CatalogChangesTotal prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telegram_messages_sent_total",
			Help: "Total number of messages sent to Telegram",
		}),
		MessagesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telegram_messages_received_total",
			Help: "Total number of messages received from Telegram",
		}),
		CallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telegram_callbacks_total",
			Help: "Total number of callback queries received",
		}),
		SendErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telegram_send_errors_total",
			Help: "Total number of failed Telegram sends",
		}),

		EventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "navigation_event_duration_seconds",
				Help:    "Duration of navigation event handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		InvalidActions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigation_invalid_actions_total",
			Help: "Total number of unrecognized callback actions",
		}),
		ExpiredSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navigation_expired_tokens_total",
			Help: "Total number of callbacks that hit an expired session cache",
		}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live chat sessions",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_evicted_total",
			Help: "Total number of sessions evicted by TTL or count bound",
		}),

		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deliveries_total",
				Help: "Total number of delivery pipeline runs by outcome",
			},
			[]string{"status"},
		),
		FilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delivery_files_total",
				Help: "Total number of files handled by the delivery pipeline",
			},
			[]string{"status"},
		),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delivery_duration_seconds",
			Help:    "Duration of delivery pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		CatalogChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_changes_total",
			Help: "Total number of filesystem changes observed under the catalog",
		}),
	}

	registry.MustRegister(
		m.MessagesSentTotal,
		m.MessagesReceivedTotal,
		m.CallbacksTotal,
		m.SendErrorsTotal,
		m.EventDuration,
		m.InvalidActions,
		m.ExpiredSessions,
		m.SessionsActive,
		m.SessionsEvicted,
		m.DeliveriesTotal,
		m.FilesTotal,
		m.DeliveryDuration,
		m.CatalogChangesTotal,
	)

	return m
}

// ObserveEvent records the handling duration of one inbound event
func (m *Metrics) ObserveEvent(kind string, d time.Duration) {
	m.EventDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ServeContext runs the metrics HTTP server until ctx is cancelled
func (m *Metrics) ServeContext(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
