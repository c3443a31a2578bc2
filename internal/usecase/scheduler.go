package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

type pairKey struct {
	symbol string
	tf     domrepo.Timeframe
}

// pairRunner is the slice of AnalysisUseCase the scheduler drives.
type pairRunner interface {
	RunPair(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.Prediction, error)
}

// AnalysisScheduler runs analysis passes for pairs with fresh candles.
// Nudge marks a pair dirty; a ticker drains the dirty set onto a bounded
// work channel served by a fixed pool of workers. Per-pair pacing by minGap
// keeps a burst of closed candles from triggering a burst of identical
// analyses, and a saturated pool leaves pairs dirty for the next tick
// instead of blocking the ticker.
type AnalysisScheduler struct {
	uc       pairRunner
	metrics  domrepo.Metrics
	log      *applogger.Logger
	interval time.Duration
	minGap   time.Duration
	workers  int

	mu      sync.Mutex
	dirty   map[pairKey]struct{}
	lastRun map[pairKey]time.Time
	started bool
	stopCh  chan struct{}
	work    chan pairKey
}

// NewAnalysisScheduler creates a scheduler. interval is the drain tick,
// minGap the per-pair pacing floor, workers the pool size.
func NewAnalysisScheduler(uc pairRunner, metrics domrepo.Metrics, log *applogger.Logger, interval, minGap time.Duration, workers int) *AnalysisScheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if minGap < 0 {
		minGap = 0
	}
	if workers <= 0 {
		workers = 2
	}
	return &AnalysisScheduler{
		uc:       uc,
		metrics:  metrics,
		log:      log,
		interval: interval,
		minGap:   minGap,
		workers:  workers,
		dirty:    make(map[pairKey]struct{}),
		lastRun:  make(map[pairKey]time.Time),
		stopCh:   make(chan struct{}),
		work:     make(chan pairKey, workers*4),
	}
}

// Nudge marks (symbol, timeframe) for the next drain. Never blocks; safe
// from any goroutine.
func (s *AnalysisScheduler) Nudge(symbol string, tf domrepo.Timeframe) {
	s.mu.Lock()
	s.dirty[pairKey{symbol: symbol, tf: tf}] = struct{}{}
	s.mu.Unlock()
}

// Start launches the worker pool and the drain loop.
func (s *AnalysisScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		go s.runWorker(ctx)
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.drain()
			}
		}
	}()
}

// Stop halts the drain loop and the workers. A pass already running is left
// to finish on its own context.
func (s *AnalysisScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()
	close(s.stopCh)
}

// drain hands due pairs to the pool. A pair only leaves the dirty set once
// it is actually on the work channel.
func (s *AnalysisScheduler) drain() {
	now := time.Now()

	s.mu.Lock()
	due := make([]pairKey, 0, len(s.dirty))
	for key := range s.dirty {
		if s.minGap > 0 && now.Sub(s.lastRun[key]) < s.minGap {
			continue
		}
		due = append(due, key)
	}
	s.mu.Unlock()

	for _, key := range due {
		select {
		case s.work <- key:
			s.mu.Lock()
			delete(s.dirty, key)
			s.lastRun[key] = now
			s.mu.Unlock()
		default:
			// pool saturated; the rest stays dirty for the next tick
			s.metrics.RecordQueueDepth("analysis_backlog", len(s.work))
			return
		}
	}
	s.metrics.RecordQueueDepth("analysis_backlog", len(s.work))
}

func (s *AnalysisScheduler) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case key := <-s.work:
			s.runPair(ctx, key)
		}
	}
}

func (s *AnalysisScheduler) runPair(ctx context.Context, key pairKey) {
	if _, err := s.uc.RunPair(ctx, key.symbol, key.tf); err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			s.log.Debug("analysis waiting for history",
				applogger.String("symbol", key.symbol),
				applogger.String("timeframe", string(key.tf)))
			return
		}
		s.metrics.RecordIngestError("analysis")
		s.log.Warn("analysis pass failed",
			applogger.String("symbol", key.symbol),
			applogger.String("timeframe", string(key.tf)),
			applogger.Error(err))
	}
}
