package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of answered searches by document kind and serving source",
		},
		[]string{"kind", "source"},
	)

	backfillFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_backfill_failures_total",
			Help: "Total number of failed index backfills after a store fallback",
		},
		[]string{"kind"},
	)
)
