package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msrpctl",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Admin HTTP requests per endpoint and route.",
		},
		[]string{"endpoint", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msrpctl",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "route", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msrpctl",
			Name:      "frames_received_total",
			Help:      "MSRP frames parsed from the wire.",
		},
		[]string{"kind", "method"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msrpctl",
			Name:      "frames_sent_total",
			Help:      "MSRP frames written to the wire.",
		},
		[]string{"path"},
	)
	bytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "msrpctl",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to MSRP sockets.",
		},
	)
	transferErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msrpctl",
			Name:      "transfer_errors_total",
			Help:      "Transfer errors surfaced to session listeners.",
		},
		[]string{"kind"},
	)
	transactionsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "msrpctl",
			Name:      "transactions_tracked",
			Help:      "Transaction info entries currently tracked.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, framesSent, bytesSent,
			transferErrors, transactionsTracked,
		)
	})
}

func RecordAdminRequest(endpoint, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(endpoint, route, statusLabel).Inc()
	httpDuration.WithLabelValues(endpoint, route, statusLabel).Observe(duration.Seconds())
}

func RecordFrameReceived(kind, method string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(kind, method).Inc()
}

// RecordFrameSent counts one written frame; path is "queued" or "immediate".
func RecordFrameSent(path string, n int) {
	RegisterMetrics()
	framesSent.WithLabelValues(path).Inc()
	bytesSent.Add(float64(n))
}

func RecordTransferError(err error) {
	RegisterMetrics()
	transferErrors.WithLabelValues(ErrorKind(err)).Inc()
}

func AddTrackedTransactions(delta int) {
	RegisterMetrics()
	transactionsTracked.Add(float64(delta))
}

// ErrorKind maps an error onto the protocol taxonomy label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, protocol.ErrNetwork):
		return "network"
	case errors.Is(err, protocol.ErrPayload):
		return "payload"
	case errors.Is(err, protocol.ErrResponseTimeout):
		return "timeout"
	case errors.Is(err, protocol.ErrRemoteStatus):
		return "status"
	default:
		return "internal"
	}
}
