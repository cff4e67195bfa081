package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vaultflow/internal/model"
)

// PostgresStore persists the history log in Postgres. Dedup by tx hash
// is enforced by the primary key; pruning runs on every append.
type PostgresStore struct {
	pool    *pgxpool.Pool
	horizon time.Duration
	maxLen  int
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, horizon time.Duration, maxLen int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = DefaultHorizonDays * 24 * time.Hour
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxEntries
	}
	store := &PostgresStore{pool: pool, horizon: horizon, maxLen: maxLen}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tx_history (
			tx_hash TEXT PRIMARY KEY,
			chain_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			amount TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Append upserts the record by transaction hash and prunes old rows.
func (s *PostgresStore) Append(record model.HistoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tx_history (tx_hash, chain_id, kind, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash)
		DO UPDATE SET status = EXCLUDED.status
	`,
		record.TxHash,
		int64(record.ChainID),
		record.Kind,
		record.Amount,
		record.Status,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	return s.pruneLocked(ctx)
}

// List returns records newest first, up to limit (0 means the cap).
func (s *PostgresStore) List(limit int) ([]model.HistoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = s.maxLen
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash, chain_id, kind, amount, status, created_at
		FROM tx_history
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var record model.HistoryRecord
		var chainID int64
		if err := rows.Scan(&record.TxHash, &chainID, &record.Kind, &record.Amount, &record.Status, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		record.ChainID = uint64(chainID)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) pruneLocked(ctx context.Context) error {
	cutoff := time.Now().Add(-s.horizon)
	if _, err := s.pool.Exec(ctx, `DELETE FROM tx_history WHERE created_at < $1`, cutoff); err != nil {
		return fmt.Errorf("prune history by age: %w", err)
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM tx_history
		WHERE tx_hash IN (
			SELECT tx_hash FROM tx_history
			ORDER BY created_at DESC
			OFFSET $1
		)
	`, s.maxLen)
	if err != nil {
		return fmt.Errorf("prune history by count: %w", err)
	}
	return nil
}
