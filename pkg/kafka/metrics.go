package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_kafka_producer_messages_total",
		Help: "Messages published, by topic and result.",
	}, []string{"topic", "result"})

	producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_kafka_producer_bytes_total",
		Help: "Payload bytes published per topic.",
	}, []string{"topic"})

	producerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smsent_kafka_producer_publish_seconds",
		Help:    "WriteMessages latency per topic.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	consumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_kafka_consumer_messages_total",
		Help: "Messages processed, by topic and result.",
	}, []string{"topic", "result"})

	consumerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smsent_kafka_consumer_handle_seconds",
		Help:    "Handling time per message including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	consumerInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smsent_kafka_consumer_inflight",
		Help: "Messages dispatched to workers and not yet finished.",
	})

	consumerFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_kafka_consumer_fetch_errors_total",
		Help: "Reader fetch failures per topic.",
	}, []string{"topic"})

	consumerDeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smsent_kafka_consumer_dead_letters_total",
		Help: "Messages forwarded to the dead letter topic.",
	}, []string{"topic"})
)
