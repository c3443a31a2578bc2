package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	domrepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	pkgch "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/clickhouse"
)

// CHWeightStore implements the append-only WeightStore on ClickHouse.
// One row per version; the highest version is the active set.
type CHWeightStore struct {
	db    *sql.DB
	table string
}

func NewCHWeightStore(ch *pkgch.Client, database string) *CHWeightStore {
	return &CHWeightStore{db: ch.DB(), table: database + ".weight_sets"}
}

var _ domrepo.WeightStore = (*CHWeightStore)(nil)

func (s *CHWeightStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            version     Int32,
            created_at  DateTime64(3),
            source      String,
            sample_size Int32,
            weights     String
        ) ENGINE = MergeTree
        ORDER BY (version)
    `, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init weight table: %w", err)
	}
	return nil
}

func (s *CHWeightStore) Append(ctx context.Context, ws models.WeightSet) error {
	weights, err := json.Marshal(ws.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (version, created_at, source, sample_size, weights) VALUES (?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q,
		int32(ws.Version),
		ws.CreatedAt.UTC(),
		string(ws.Source),
		int32(ws.SampleSize),
		string(weights),
	); err != nil {
		return fmt.Errorf("append weight set: %w", err)
	}
	return nil
}

func (s *CHWeightStore) Latest(ctx context.Context) (*models.WeightSet, error) {
	q := fmt.Sprintf(`SELECT version, created_at, source, sample_size, weights FROM %s ORDER BY version DESC LIMIT 1`, s.table)
	ws, err := s.scanOne(s.db.QueryRowContext(ctx, q))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no weight sets: %w", sql.ErrNoRows)
		}
		return nil, err
	}
	return ws, nil
}

func (s *CHWeightStore) History(ctx context.Context, limit int) ([]models.WeightSet, error) {
	q := fmt.Sprintf(`SELECT version, created_at, source, sample_size, weights FROM %s ORDER BY version DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("weight history: %w", err)
	}
	defer rows.Close()

	var out []models.WeightSet
	for rows.Next() {
		ws, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

func (s *CHWeightStore) Close() error {
	return nil // Managed by pkg
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *CHWeightStore) scanOne(row rowScanner) (*models.WeightSet, error) {
	var (
		ws         models.WeightSet
		version    int32
		source     string
		sampleSize int32
		weights    string
	)
	if err := row.Scan(&version, &ws.CreatedAt, &source, &sampleSize, &weights); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan weight set: %w", err)
	}
	ws.Version = int(version)
	ws.Source = models.WeightSource(source)
	ws.SampleSize = int(sampleSize)
	if err := json.Unmarshal([]byte(weights), &ws.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &ws, nil
}
