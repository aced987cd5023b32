package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "provider_fetch_latency_seconds",
		Help: "Latency of external provider calls",
	}, []string{"provider", "operation"})

	SyncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_total",
		Help: "Total number of records persisted by sync operations",
	}, []string{"sync_type"})

	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_failures_total",
		Help: "Total number of failed sync items",
	}, []string{"sync_type"})

	DBInsertRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_insert_total",
		Help: "Total number of records inserted into DB",
	}, []string{"table"})

	AlertTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alert_triggers_total",
		Help: "Total number of price alerts triggered",
	}, []string{"alert_type"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})
)
