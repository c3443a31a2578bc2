package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
)

type metricsStub struct {
	mu     sync.Mutex
	errors map[string]int
}

func newMetricsStub() *metricsStub { return &metricsStub{errors: make(map[string]int)} }

func (m *metricsStub) RecordPrediction(string, string) {}
func (m *metricsStub) RecordVerification(string)       {}
func (m *metricsStub) RecordRetrain(bool)              {}

func (m *metricsStub) RecordIngestError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *metricsStub) RecordCandleStored(string, string) {}
func (m *metricsStub) RecordLastPrice(string, float64)   {}
func (m *metricsStub) RecordActiveWeightsVersion(int)    {}
func (m *metricsStub) RecordPendingPredictions(int)      {}
func (m *metricsStub) RecordQueueDepth(string, int)      {}
func (m *metricsStub) RecordDuration(string, float64)    {}

func (m *metricsStub) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type procStub struct {
	mu      sync.Mutex
	seen    []*models.Trade
	failFor int // first failFor calls return an error
	calls   int
}

func (p *procStub) Process(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFor {
		return errors.New("downstream down")
	}
	p.seen = append(p.seen, t)
	return nil
}

func (p *procStub) delivered() []*models.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Trade, len(p.seen))
	copy(out, p.seen)
	return out
}

func tick(sym string, ts time.Time) *models.Trade {
	return &models.Trade{Symbol: sym, Price: 100, Volume: 1, Timestamp: ts}
}

func TestPipelineRejectsInvalidTrades(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m)

	now := time.Now()
	bad := []*models.Trade{
		nil,
		{Symbol: "", Price: 1, Volume: 1, Timestamp: now},
		{Symbol: "BTCUSDT", Price: 1, Volume: 1},
		{Symbol: "BTCUSDT", Price: 0, Volume: 1, Timestamp: now},
		{Symbol: "BTCUSDT", Price: -5, Volume: 1, Timestamp: now},
		{Symbol: "BTCUSDT", Price: 1, Volume: -1, Timestamp: now},
	}
	for i, tr := range bad {
		if err := p.Process(context.Background(), tr); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if got := len(proc.delivered()); got != 0 {
		t.Fatalf("invalid trades reached downstream: %d", got)
	}
	if m.errCount("pipeline_validate") != len(bad) {
		t.Fatalf("validate counter = %d, want %d", m.errCount("pipeline_validate"), len(bad))
	}
}

func TestPipelineDropsStaleTrades(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m, WithMaxAge(time.Minute))

	old := tick("BTCUSDT", time.Now().Add(-2*time.Hour))
	if err := p.Process(context.Background(), old); err != nil {
		t.Fatalf("stale trade should drop silently, got %v", err)
	}
	if got := len(proc.delivered()); got != 0 {
		t.Fatalf("stale trade reached downstream")
	}
	if m.errCount("pipeline_stale") != 1 {
		t.Fatalf("stale counter = %d, want 1", m.errCount("pipeline_stale"))
	}

	fresh := tick("BTCUSDT", time.Now())
	if err := p.Process(context.Background(), fresh); err != nil {
		t.Fatalf("fresh trade: %v", err)
	}
	if got := len(proc.delivered()); got != 1 {
		t.Fatalf("fresh trade dropped")
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))

	now := time.Now()
	if err := p.Process(context.Background(), tick("BTCUSDT", now)); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	if err := p.Process(context.Background(), tick("BTCUSDT", now)); err != nil {
		t.Fatalf("throttled trade should drop silently, got %v", err)
	}
	// an unrelated symbol has its own bucket
	if err := p.Process(context.Background(), tick("ETHUSDT", now)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if got := len(proc.delivered()); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if m.errCount("pipeline_throttle") != 1 {
		t.Fatalf("throttle counter = %d, want 1", m.errCount("pipeline_throttle"))
	}
}

func TestPipelineTransformRunsBeforeValidation(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m, WithTransform(func(tr *models.Trade) *models.Trade {
		if tr != nil {
			tr.Symbol = strings.ToUpper(tr.Symbol)
		}
		return tr
	}))

	if err := p.Process(context.Background(), tick("btcusdt", time.Now())); err != nil {
		t.Fatalf("process: %v", err)
	}
	got := proc.delivered()
	if len(got) != 1 || got[0].Symbol != "BTCUSDT" {
		t.Fatalf("transform not applied: %+v", got)
	}
}

func TestPipelineSpillsAndReplays(t *testing.T) {
	proc := &procStub{failFor: 1}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m, WithMaxRPS(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	tr := tick("BTCUSDT", time.Now())
	if err := p.Process(ctx, tr); err == nil {
		t.Fatalf("expected downstream error")
	}

	deadline := time.After(2 * time.Second)
	for len(proc.delivered()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("spilled trade was never replayed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	got := proc.delivered()
	if got[0].Symbol != tr.Symbol {
		t.Fatalf("replayed wrong trade: %+v", got[0])
	}
}

func TestPipelineEvictsOldestWhenFull(t *testing.T) {
	proc := &procStub{failFor: 1 << 30}
	m := newMetricsStub()
	p := NewRealtimePipeline(proc, m, WithBufferSize(1), WithMaxRPS(0))

	now := time.Now()
	first := tick("BTCUSDT", now)
	second := tick("ETHUSDT", now)
	if err := p.Process(context.Background(), first); err == nil {
		t.Fatalf("expected downstream error")
	}
	if err := p.Process(context.Background(), second); err == nil {
		t.Fatalf("expected downstream error")
	}

	if m.errCount("pipeline_evict") != 1 {
		t.Fatalf("evict counter = %d, want 1", m.errCount("pipeline_evict"))
	}
	select {
	case kept := <-p.spill:
		if kept.Symbol != "ETHUSDT" {
			t.Fatalf("kept %s, want the newer ETHUSDT", kept.Symbol)
		}
	default:
		t.Fatalf("spill buffer empty")
	}
}
