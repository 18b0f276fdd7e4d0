package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_clamped_total",
		Help: "Total number of reservation requests reduced to the available quantity",
	})

	ReservationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Total number of rejected reservation writes",
	}, []string{"reason"})

	ReservationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Total number of reservation status transitions",
	}, []string{"to"})

	PackagesDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packages_delivered_total",
		Help: "Total number of packages delivered, by package label",
	}, []string{"package_label"})

	StockAddedPackagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_added_packages_total",
		Help: "Total number of packages added to stock, by package label",
	}, []string{"package_label"})

	LedgerTxLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_tx_latency_seconds",
		Help:    "Latency of ledger write transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	GroupEditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_group_edits_total",
		Help: "Total number of reservation group edits, by outcome",
	}, []string{"outcome"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of ledger events that could not be published",
	}, []string{"event_type"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of customer notifications, by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
