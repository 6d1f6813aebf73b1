package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_publish_total",
		Help: "Events handed to Kafka by topic and result.",
	}, []string{"topic", "result"})

	// Writes are synchronous with acks=all, so latency tracks broker round trips.
	publishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_publish_duration_seconds",
		Help:    "Time spent in WriteMessages by topic.",
		Buckets: []float64{.002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"topic"})
)

func observePublish(topic string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishTotal.WithLabelValues(topic, result).Inc()
	publishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}
