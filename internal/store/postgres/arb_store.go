package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// ArbStore implements domain.ArbStore using PostgreSQL.
type ArbStore struct {
	pool *pgxpool.Pool
}

// NewArbStore creates a new ArbStore backed by the given connection pool.
func NewArbStore(pool *pgxpool.Pool) *ArbStore {
	return &ArbStore{pool: pool}
}

// Numeric columns are read back as text so no precision is lost on the way
// into decimal.Decimal.
const arbSelectCols = `id, base, counter,
	amount_in::text, counter_amount::text, amount_back::text, profit::text,
	leg_out_venue, leg_back_venue, fee_estimate::text, detected_at`

// Insert stores a detected arbitrage. Re-inserting the same id is a no-op.
func (s *ArbStore) Insert(ctx context.Context, rec domain.ArbRecord) error {
	const query = `
		INSERT INTO arb_history (
			id, base, counter,
			amount_in, counter_amount, amount_back, profit,
			leg_out_venue, leg_back_venue, fee_estimate, detected_at
		) VALUES (
			$1, $2, $3,
			$4::numeric, $5::numeric, $6::numeric, $7::numeric,
			$8, $9, $10::numeric, $11
		)
		ON CONFLICT (id) DO NOTHING`

	var fee *string
	if rec.FeeEstimate != nil {
		f := rec.FeeEstimate.String()
		fee = &f
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Base, rec.Counter,
		rec.AmountIn.String(), rec.CounterAmount.String(), rec.AmountBack.String(), rec.Profit.String(),
		rec.LegOutVenue, rec.LegBackVenue, fee, rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent records, newest first.
func (s *ArbStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbRecord, error) {
	query := `SELECT ` + arbSelectCols + ` FROM arb_history ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	return s.list(ctx, "list recent arbs", query, args...)
}

// ListBefore returns every record detected before the cutoff, oldest first.
func (s *ArbStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ArbRecord, error) {
	query := `SELECT ` + arbSelectCols + ` FROM arb_history WHERE detected_at < $1 ORDER BY detected_at ASC`
	return s.list(ctx, "list arbs before", query, before)
}

// DeleteBefore removes every record detected before the cutoff.
func (s *ArbStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arb_history WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete arbs before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *ArbStore) list(ctx context.Context, op, query string, args ...any) ([]domain.ArbRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var recs []domain.ArbRecord
	for rows.Next() {
		rec, err := scanArbRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return recs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArbRecord(row rowScanner) (domain.ArbRecord, error) {
	var (
		rec                                domain.ArbRecord
		amountIn, counterAmt, back, profit string
		fee                                *string
	)
	if err := row.Scan(
		&rec.ID, &rec.Base, &rec.Counter,
		&amountIn, &counterAmt, &back, &profit,
		&rec.LegOutVenue, &rec.LegBackVenue, &fee, &rec.DetectedAt,
	); err != nil {
		return rec, fmt.Errorf("postgres: scan arb: %w", err)
	}

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rec.AmountIn, amountIn},
		{&rec.CounterAmount, counterAmt},
		{&rec.AmountBack, back},
		{&rec.Profit, profit},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return rec, fmt.Errorf("postgres: arb %s: %w: %w", rec.ID, domain.ErrDecode, err)
		}
	}
	if fee != nil {
		d, err := decimal.NewFromString(*fee)
		if err != nil {
			return rec, fmt.Errorf("postgres: arb %s fee: %w: %w", rec.ID, domain.ErrDecode, err)
		}
		rec.FeeEstimate = &d
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.ArbStore = (*ArbStore)(nil)
