package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgch "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/clickhouse"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
)

// candleColumns is the column order shared by every candles_* table. Scan
// order in queryCandles must match.
const candleColumns = "ts, symbol, open, high, low, close, vol"

// insertChunk bounds rows per INSERT so a large backfill cannot produce an
// unbounded statement.
const insertChunk = 2000

// CHCandleStore implements CandleStore backed by ClickHouse, one table per
// timeframe. ReplacingMergeTree keyed on (symbol, ts) makes inserts
// idempotent: a re-emitted bucket overwrites instead of duplicating, and
// reads use FINAL to collapse unmerged versions.
type CHCandleStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database string) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.CandleStore = (*CHCandleStore)(nil)

func (s *CHCandleStore) Init(ctx context.Context) error {
	for _, tf := range domrepo.Timeframes() {
		table, err := s.tableForTF(tf)
		if err != nil {
			return err
		}
		ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts     DateTime64(3),
            symbol String,
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            vol    Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, ts)
    `, table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("init candle table %s: %w", table, err)
		}
	}
	return nil
}

func (s *CHCandleStore) StoreBatch(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	table, err := s.tableForTF(tf)
	if err != nil {
		return err
	}
	for off := 0; off < len(candles); off += insertChunk {
		chunk := candles[off:min(off+insertChunk, len(candles))]
		if err := s.insert(ctx, table, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *CHCandleStore) insert(ctx context.Context, table string, chunk []models.Candle) error {
	rows := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*7)
	for _, c := range chunk {
		if c.Symbol == "" || c.Timestamp.IsZero() {
			continue
		}
		rows = append(rows, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, c.Timestamp.UTC(), c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	if len(rows) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, candleColumns, strings.Join(rows, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.fail("store_batch", table, err, applogger.Int("rows", len(rows)))
		return fmt.Errorf("store candles: %w", err)
	}
	return nil
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC",
		candleColumns, table)
	return s.queryCandles(ctx, "get_candles", table, 1024, q, symbol, from.UTC(), to.UTC())
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE symbol = ? ORDER BY ts DESC LIMIT ?",
		candleColumns, table)
	out, err := s.queryCandles(ctx, "latest_candles", table, n, q, symbol, n)
	if err != nil {
		return nil, err
	}
	// Fetched newest-first to bound the scan; callers expect ascending time.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHCandleStore) GetCandlesAfter(ctx context.Context, symbol string, ts time.Time, limit int, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE symbol = ? AND ts > ? ORDER BY ts ASC LIMIT ?",
		candleColumns, table)
	return s.queryCandles(ctx, "candles_after", table, limit, q, symbol, ts.UTC(), limit)
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCandleStore) Close() error {
	return nil // Managed by pkg
}

// queryCandles runs a candle SELECT and scans the result set. Every read
// path goes through it so failures log and wrap uniformly.
func (s *CHCandleStore) queryCandles(ctx context.Context, op, table string, capacity int, q string, args ...interface{}) ([]models.Candle, error) {
	began := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.fail(op, table, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, capacity)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.fail(op, table, err)
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.fail(op, table, err)
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse candle read",
			applogger.String("op", op),
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Duration("took_ms", time.Since(began)),
		)
	}
	return out, nil
}

func (s *CHCandleStore) fail(op, table string, err error, extra ...applogger.Field) {
	if s.l == nil {
		return
	}
	fields := append([]applogger.Field{
		applogger.String("op", op),
		applogger.String("table", table),
		applogger.Error(err),
	}, extra...)
	s.l.Error("clickhouse candle op failed", fields...)
}

func (s *CHCandleStore) tableForTF(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return fmt.Sprintf("%s.candles_%s", s.database, tf), nil
}
