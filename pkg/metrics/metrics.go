// Package metrics provides Prometheus metrics for ferry sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Listing metrics
	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_listings_total",
			Help: "Total directory listings",
		},
		[]string{"side", "status"},
	)

	listingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ferry_listing_duration_seconds",
			Help:    "Directory listing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side"},
	)

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_mutations_total",
			Help: "Total mkdir, rename and delete operations",
		},
		[]string{"side", "op", "status"},
	)

	// Transfer metrics
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_transfers_total",
			Help: "Total finished transfers by final phase",
		},
		[]string{"direction", "phase"},
	)

	filesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_files_transferred_total",
			Help: "Total files fully copied",
		},
		[]string{"direction"},
	)

	bytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ferry_bytes_transferred_total",
			Help: "Total bytes written to the destination side",
		},
		[]string{"direction"},
	)

	fileTransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ferry_file_transfer_duration_seconds",
			Help:    "Time to copy a single file",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"direction"},
	)

	transferActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ferry_transfer_active",
			Help: "1 while a transfer is queued or in progress",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordListing records a directory listing.
func RecordListing(side string, ok bool, duration time.Duration) {
	listingsTotal.WithLabelValues(side, status(ok)).Inc()
	listingDuration.WithLabelValues(side).Observe(duration.Seconds())
}

// RecordMutation records a mkdir, rename or delete.
func RecordMutation(side, op string, ok bool) {
	mutationsTotal.WithLabelValues(side, op, status(ok)).Inc()
}

// RecordFileTransferred records one fully copied file.
func RecordFileTransferred(direction string, bytes int64, duration time.Duration) {
	filesTransferred.WithLabelValues(direction).Inc()
	bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
	fileTransferDuration.WithLabelValues(direction).Observe(duration.Seconds())
}

// RecordTransferStarted marks a transfer as active.
func RecordTransferStarted() {
	transferActive.Set(1)
}

// RecordTransferFinished records the final phase of a transfer.
func RecordTransferFinished(direction, phase string) {
	transfersTotal.WithLabelValues(direction, phase).Inc()
	transferActive.Set(0)
}
