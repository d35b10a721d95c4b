package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_fills_total",
		Help: "The total number of fill attempts",
	}, []string{"status", "funding"})

	FillRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_fill_rejects_total",
		Help: "Fill rejections by failure kind",
	}, []string{"reason"})

	RoyaltyPayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegate_royalty_payments_total",
		Help: "Royalty legs paid, by logical payer",
	}, []string{"payer"})

	NonceCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegate_nonce_cancellations_total",
		Help: "Nonces consumed by explicit cancellation",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
