package api

import (
	"context"
	"encoding/json"
	"time"

	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	icache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/cache"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/metrics"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/ratelimit"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/usecase"
	pkgcache "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/cache"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// StreamStatus exposes market stream connectivity for the health endpoint.
type StreamStatus interface {
	IsConnected() bool
}

// ReportsHandler serves the reporting API: predictions, accuracy, weights,
// snapshots and raw candles. Hot endpoints sit behind a token bucket rate
// limiter and a short-TTL byte cache.
type ReportsHandler struct {
	reports  *usecase.ReportsUseCase
	candles  *usecase.CandlesUseCase
	analysis *usecase.AnalysisUseCase
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
	l        *applogger.Logger

	health domrepo.CandleStore
	stream StreamStatus
}

func NewReportsHandler(reports *usecase.ReportsUseCase, candles *usecase.CandlesUseCase, analysis *usecase.AnalysisUseCase) *ReportsHandler {
	metrics.Register()
	return &ReportsHandler{reports: reports, candles: candles, analysis: analysis, rl: ratelimit.New()}
}

func (h *ReportsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *ReportsHandler) SetLogger(l *applogger.Logger) { h.l = l }

// SetHealthProbes wires the dependencies the health endpoint reports on.
func (h *ReportsHandler) SetHealthProbes(store domrepo.CandleStore, stream StreamStatus) {
	h.health = store
	h.stream = stream
}

// cacheKey derives a bounded-size key from the raw query string.
func cacheKey(endpoint, raw string) string {
	return "reports:" + endpoint + ":" + pkgcache.HashKey(raw)
}

// fromCache returns the cached payload bytes for key, if present.
func (h *ReportsHandler) fromCache(ctx context.Context, endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(ctx, key)
	if err != nil {
		if h.l != nil {
			h.l.Warn("reports cache_get_error", applogger.String("endpoint", endpoint), applogger.Error(err))
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	metrics.ReportCacheHits.WithLabelValues(endpoint).Inc()
	return b, true
}

// putCache marshals v and stores it under key. Returns the payload bytes so
// the caller responds with exactly what later cache hits will serve.
func (h *ReportsHandler) putCache(ctx context.Context, endpoint, key string, v interface{}, ttl time.Duration) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(ctx, key, b, ttl); err != nil && h.l != nil {
			h.l.Warn("reports cache_set_error", applogger.String("endpoint", endpoint), applogger.Error(err))
		}
	}
	return b, nil
}

func (h *ReportsHandler) observe(endpoint string, start time.Time) {
	metrics.ReportLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *ReportsHandler) fail(endpoint string, err error) {
	metrics.ReportErrors.WithLabelValues(endpoint).Inc()
	if h.l != nil {
		h.l.Error("reports endpoint error", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
}

// healthReport is the /healthz body.
type healthReport struct {
	Status     string `json:"status"`
	ClickHouse string `json:"clickhouse"`
	Stream     string `json:"stream"`
}

func (h *ReportsHandler) checkHealth(ctx context.Context) healthReport {
	rep := healthReport{Status: "ok", ClickHouse: "up", Stream: "connected"}
	if h.health != nil {
		if err := h.health.Health(ctx); err != nil {
			rep.ClickHouse = "down"
			rep.Status = "degraded"
		}
	}
	if h.stream != nil && !h.stream.IsConnected() {
		rep.Stream = "disconnected"
		rep.Status = "degraded"
	}
	return rep
}
