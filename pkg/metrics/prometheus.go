package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictionsTotal   *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	retrainsTotal      *prometheus.CounterVec
	ingestErrors       *prometheus.CounterVec
	candlesStored      *prometheus.CounterVec
	lastPrice          *prometheus.GaugeVec
	weightsVersion     prometheus.Gauge
	pendingPredictions prometheus.Gauge
	queueDepth         *prometheus.GaugeVec
	latency            *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsent_predictions_total",
				Help: "Total number of predictions generated",
			},
			[]string{"symbol", "bias"},
		),
		verificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsent_verifications_total",
				Help: "Total number of predictions verified",
			},
			[]string{"outcome"},
		),
		retrainsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsent_retrains_total",
				Help: "Total number of retrain proposals",
			},
			[]string{"result"},
		),
		ingestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsent_ingest_errors_total",
				Help: "Total number of ingestion errors",
			},
			[]string{"type"},
		),
		candlesStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsent_candles_stored_total",
				Help: "Total number of closed candles written to storage",
			},
			[]string{"symbol", "timeframe"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smsent_last_price",
				Help: "Last observed trade price per symbol",
			},
			[]string{"symbol"},
		),
		weightsVersion: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "smsent_active_weights_version",
				Help: "Version of the active indicator weight set",
			},
		),
		pendingPredictions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "smsent_pending_predictions",
				Help: "Predictions awaiting verification",
			},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "smsent_queue_depth",
				Help: "Occupancy of internal buffers and work queues",
			},
			[]string{"queue"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smsent_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records one generated prediction.
func (r *Recorder) RecordPrediction(symbol, bias string) {
	r.predictionsTotal.WithLabelValues(symbol, bias).Inc()
}

// RecordVerification records a verification outcome.
func (r *Recorder) RecordVerification(outcome string) {
	r.verificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRetrain records a retrain attempt result.
func (r *Recorder) RecordRetrain(accepted bool) {
	r.retrainsTotal.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

// RecordIngestError records an ingestion error occurrence.
func (r *Recorder) RecordIngestError(kind string) {
	r.ingestErrors.WithLabelValues(kind).Inc()
}

// RecordCandleStored records one closed candle written to storage.
func (r *Recorder) RecordCandleStored(symbol, timeframe string) {
	r.candlesStored.WithLabelValues(symbol, timeframe).Inc()
}

// RecordLastPrice records the most recent trade price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordActiveWeightsVersion records the active weight set version.
func (r *Recorder) RecordActiveWeightsVersion(version int) {
	r.weightsVersion.Set(float64(version))
}

// RecordPendingPredictions records the pending verification backlog size.
func (r *Recorder) RecordPendingPredictions(n int) {
	r.pendingPredictions.Set(float64(n))
}

// RecordQueueDepth records the current occupancy of a named buffer.
func (r *Recorder) RecordQueueDepth(queue string, n int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(n))
}

// RecordDuration records operation latency in seconds.
func (r *Recorder) RecordDuration(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
