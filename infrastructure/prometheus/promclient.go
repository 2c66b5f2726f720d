package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/ndax-bridge/domain"
)

var OpenOrderBookGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ndax_open_order_book",
		Help: "ndax open order book",
	},
)

var QueueLengthGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "ndax_order_book_queue_length",
		Help: "order book messages waiting to be applied",
	},
)

var AppliedMessagesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ndax_order_book_messages_applied_total",
		Help: "order book messages applied to the local books",
	},
	[]string{"type"},
)

var StaleMessagesCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ndax_order_book_messages_stale_total",
		Help: "order book messages dropped because they were older than the book",
	},
)

var StreamReconnectsCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ndax_stream_reconnects_total",
		Help: "streaming connection failures followed by a reconnect",
	},
)

var SnapshotFailuresCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ndax_snapshot_failures_total",
		Help: "failed order book snapshot fetches",
	},
	[]string{"pair"},
)

var SubscribeSkippedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ndax_subscribe_skipped_total",
		Help: "tracked pairs left unsubscribed because the exchange does not list them",
	},
	[]string{"pair"},
)

// MaintainerMetrics reports the order book apply loop on the package collectors.
type MaintainerMetrics struct{}

func (MaintainerMetrics) QueueLength(n int) { QueueLengthGauge.Set(float64(n)) }

func (MaintainerMetrics) Applied(t domain.MessageType) {
	AppliedMessagesCounter.WithLabelValues(t.String()).Inc()
}

func (MaintainerMetrics) Stale() { StaleMessagesCounter.Inc() }

func (MaintainerMetrics) OpenOrderBooks(n int) { OpenOrderBookGauge.Set(float64(n)) }

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(OpenOrderBookGauge)
	reg.MustRegister(QueueLengthGauge)
	reg.MustRegister(AppliedMessagesCounter)
	reg.MustRegister(StaleMessagesCounter)
	reg.MustRegister(StreamReconnectsCounter)
	reg.MustRegister(SnapshotFailuresCounter)
	reg.MustRegister(SubscribeSkippedCounter)
	reg.MustRegister(collectors.NewGoCollector())

	return reg
}

// StartPromClientServer serves /metrics on addr until the listener fails.
func StartPromClientServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(NewRegistry(), promhttp.HandlerOpts{}))
	logrus.WithField("component", "prometheus").Infof("prometheus server listening at %s", addr)

	return http.ListenAndServe(addr, mux)
}
