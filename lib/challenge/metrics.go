package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RenderTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "captcha_render_time",
		Help:    "The time taken to render challenge media (seconds)",
		Buckets: prometheus.ExponentialBucketsRange(0.001, 10, 16),
	}, []string{"kind"})

	issued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captcha_challenges_issued",
		Help: "The number of challenges issued",
	}, []string{"kind"})

	renderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captcha_render_failures",
		Help: "The number of challenges that failed to render",
	}, []string{"kind"})
)
