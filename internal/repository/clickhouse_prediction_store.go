package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgch "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/clickhouse"
)

// CHPredictionStore implements PredictionStore backed by ClickHouse.
// Rows are never updated in place: MarkVerified re-inserts the row with the
// verification outcome and a newer updated_at, and ReplacingMergeTree keeps
// the latest version per id. Reads use FINAL to collapse versions.
type CHPredictionStore struct {
	db    *sql.DB
	table string
}

func NewCHPredictionStore(ch *pkgch.Client, database string) *CHPredictionStore {
	return &CHPredictionStore{db: ch.DB(), table: database + ".predictions"}
}

var _ domrepo.PredictionStore = (*CHPredictionStore)(nil)

func (s *CHPredictionStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id              String,
            symbol          String,
            tf              String,
            generated_at    DateTime64(3),
            bias            String,
            confidence      Float64,
            composite       Float64,
            scores          String,
            weights_version Int32,
            entry_price     Float64,
            status          String,
            verified_at     Nullable(DateTime64(3)),
            realized_move   Float64,
            updated_at      DateTime64(3)
        ) ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY (id)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init prediction table: %w", err)
	}
	return nil
}

func (s *CHPredictionStore) Append(ctx context.Context, p *models.Prediction) error {
	scores, err := encodeScores(p.Scores)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (id, symbol, tf, generated_at, bias, confidence, composite, scores, weights_version, entry_price, status, verified_at, realized_move, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		p.Symbol,
		p.Timeframe,
		p.GeneratedAt.UTC(),
		string(p.Bias),
		p.Confidence,
		p.Composite,
		scores,
		int32(p.WeightsVersion),
		p.EntryPrice,
		string(p.Status),
		nil,
		p.RealizedMove,
		p.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append prediction: %w", err)
	}
	return nil
}

func (s *CHPredictionStore) MarkVerified(ctx context.Context, r models.VerificationResult) error {
	p, err := s.Get(ctx, r.PredictionID)
	if err != nil {
		return err
	}

	scores, err := encodeScores(p.Scores)
	if err != nil {
		return err
	}
	verifiedAt := r.VerifiedAt.UTC()
	q := fmt.Sprintf(`INSERT INTO %s
        (id, symbol, tf, generated_at, bias, confidence, composite, scores, weights_version, entry_price, status, verified_at, realized_move, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		p.ID,
		p.Symbol,
		p.Timeframe,
		p.GeneratedAt.UTC(),
		string(p.Bias),
		p.Confidence,
		p.Composite,
		scores,
		int32(p.WeightsVersion),
		p.EntryPrice,
		string(r.Status),
		verifiedAt,
		r.RealizedMove,
		verifiedAt,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *CHPredictionStore) ListPendingDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Prediction, error) {
	q := fmt.Sprintf(`%s FROM %s FINAL
        WHERE status = 'pending' AND generated_at <= ?
        ORDER BY generated_at ASC
        LIMIT ?`, selectColumns, s.table)
	return s.queryPredictions(ctx, q, cutoff.UTC(), limit)
}

func (s *CHPredictionStore) ListVerified(ctx context.Context, symbol string, limit int) ([]models.Prediction, error) {
	conds := []string{"status != 'pending'"}
	args := make([]interface{}, 0, 2)
	if symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, symbol)
	}
	args = append(args, limit)
	q := fmt.Sprintf(`%s FROM %s FINAL
        WHERE %s
        ORDER BY generated_at DESC
        LIMIT ?`, selectColumns, s.table, strings.Join(conds, " AND "))
	out, err := s.queryPredictions(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHPredictionStore) List(ctx context.Context, symbol, tf string, status models.VerificationStatus, limit int) ([]models.Prediction, error) {
	conds := []string{"1 = 1"}
	args := make([]interface{}, 0, 4)
	if symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, symbol)
	}
	if tf != "" {
		conds = append(conds, "tf = ?")
		args = append(args, tf)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(status))
	}
	args = append(args, limit)
	q := fmt.Sprintf(`%s FROM %s FINAL
        WHERE %s
        ORDER BY generated_at DESC
        LIMIT ?`, selectColumns, s.table, strings.Join(conds, " AND "))
	return s.queryPredictions(ctx, q, args...)
}

func (s *CHPredictionStore) Get(ctx context.Context, id string) (*models.Prediction, error) {
	q := fmt.Sprintf(`%s FROM %s FINAL WHERE id = ? LIMIT 1`, selectColumns, s.table)
	rows, err := s.queryPredictions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("prediction %s: %w", id, sql.ErrNoRows)
	}
	return &rows[0], nil
}

func (s *CHPredictionStore) CountPending(ctx context.Context) (int, error) {
	q := fmt.Sprintf(`SELECT count() FROM %s FINAL WHERE status = 'pending'`, s.table)
	var n uint64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return int(n), nil
}

func (s *CHPredictionStore) Close() error {
	return nil // Managed by pkg
}

const selectColumns = `SELECT id, symbol, tf, generated_at, bias, confidence, composite, scores, weights_version, entry_price, status, verified_at, realized_move`

func (s *CHPredictionStore) queryPredictions(ctx context.Context, q string, args ...interface{}) ([]models.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []models.Prediction
	for rows.Next() {
		var (
			p          models.Prediction
			bias       string
			scores     string
			version    int32
			status     string
			verifiedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Timeframe, &p.GeneratedAt, &bias, &p.Confidence,
			&p.Composite, &scores, &version, &p.EntryPrice, &status, &verifiedAt, &p.RealizedMove); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p.Bias = models.Bias(bias)
		p.Status = models.VerificationStatus(status)
		p.WeightsVersion = int(version)
		if verifiedAt.Valid {
			t := verifiedAt.Time
			p.VerifiedAt = &t
		}
		if p.Scores, err = decodeScores(scores); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// scoreDoc pins the persisted JSON layout of an indicator contribution so
// model field renames cannot silently change stored rows.
type scoreDoc struct {
	Name     string  `json:"name"`
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

func encodeScores(scores []models.IndicatorScore) (string, error) {
	docs := make([]scoreDoc, len(scores))
	for i, sc := range scores {
		docs[i] = scoreDoc{Name: sc.Name, Raw: sc.Raw, Weight: sc.Weight, Weighted: sc.Weighted}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encode scores: %w", err)
	}
	return string(b), nil
}

func decodeScores(raw string) ([]models.IndicatorScore, error) {
	if raw == "" {
		return nil, nil
	}
	var docs []scoreDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	out := make([]models.IndicatorScore, len(docs))
	for i, d := range docs {
		out[i] = models.IndicatorScore{Name: d.Name, Raw: d.Raw, Weight: d.Weight, Weighted: d.Weighted}
	}
	return out, nil
}
