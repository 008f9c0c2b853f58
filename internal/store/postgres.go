package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tickd/internal/model"
)

// TickStore persists ticks into Postgres. Rows are keyed on (symbol, ts);
// writes are upserts so redelivery and flush retries are harmless.
type TickStore struct {
	conn sqlx.SqlConn
}

// NewTickStore wraps a SQL connection.
func NewTickStore(conn sqlx.SqlConn) *TickStore {
	return &TickStore{conn: conn}
}

// EnsureSchema creates the tick table when missing. Partitioning and further
// indexing are left to operators; this only guarantees a usable sink.
func (s *TickStore) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS market_ticks (
    symbol VARCHAR(50) NOT NULL,
    ts TIMESTAMPTZ NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    volume BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, ts)
);`
	if _, err := s.conn.ExecCtx(ctx, stmt); err != nil {
		return fmt.Errorf("ensure market_ticks schema: %w", err)
	}
	return nil
}

// UpsertMany writes the batch row by row with last-write-wins semantics on
// conflict. A nil error with failed keys means those rows were rejected and
// can be retried; a non-nil error means the sink was unreachable and nothing
// may be assumed written.
func (s *TickStore) UpsertMany(ctx context.Context, ticks []model.Tick) ([]model.TickKey, error) {
	if len(ticks) == 0 {
		return nil, nil
	}
	const stmt = `
INSERT INTO market_ticks (symbol, ts, price, volume)
VALUES ($1, $2, $3, $4)
ON CONFLICT (symbol, ts) DO UPDATE SET
    price = EXCLUDED.price,
    volume = EXCLUDED.volume;`

	var failed []model.TickKey
	var firstErr error
	for _, tick := range ticks {
		if _, err := s.conn.ExecCtx(ctx, stmt, tick.Symbol, tick.TS, tick.Price, tick.Volume); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, tick.Key())
			if ctx.Err() != nil {
				// The sink is not answering; report total failure so the
				// whole batch is retried.
				return nil, fmt.Errorf("upsert ticks: %w", firstErr)
			}
		}
	}
	if len(failed) == len(ticks) {
		return nil, fmt.Errorf("upsert ticks: all %d rows failed: %w", len(ticks), firstErr)
	}
	if len(failed) > 0 {
		logx.WithContext(ctx).Errorf("tick store: %d of %d rows failed: %v", len(failed), len(ticks), firstErr)
	}
	return failed, nil
}

type tickRow struct {
	Symbol string    `db:"symbol"`
	TS     time.Time `db:"ts"`
	Price  float64   `db:"price"`
	Volume int64     `db:"volume"`
}

// History returns ticks for a symbol within the trailing window, oldest
// first.
func (s *TickStore) History(ctx context.Context, symbol string, window time.Duration) ([]model.Tick, error) {
	const q = `
SELECT symbol, ts, price, volume
FROM market_ticks
WHERE symbol = $1 AND ts >= $2
ORDER BY ts ASC`

	cutoff := time.Now().Add(-window)
	var rows []tickRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, symbol, cutoff); err != nil {
		return nil, fmt.Errorf("query tick history for %s: %w", symbol, err)
	}

	out := make([]model.Tick, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Tick{Symbol: row.Symbol, TS: row.TS, Price: row.Price, Volume: row.Volume})
	}
	return out, nil
}
