package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ticksCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tracker_ticks_total",
	Help: "The total number of elapsed-time recomputations",
})

var hourBucketGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tracker_hour_bucket",
	Help: "Whole hours elapsed since the epoch at the last tick",
})

var crossingsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tracker_hour_crossings_total",
	Help: "The total number of hour boundaries crossed while running",
})

var dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tracker_notifications_total",
	Help: "Notification dispatch attempts by result",
}, []string{"result"})

var galleryRefetchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gallery_refetch_total",
	Help: "Gallery cache refetches by target",
}, []string{"target"})
