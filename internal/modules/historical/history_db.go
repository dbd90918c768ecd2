// Package historical stores daily prices and turns them into aligned return matrices.
package historical

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/allocator/internal/database"
	"github.com/rs/zerolog"
)

// DateLayout is the storage and wire format of price dates.
const DateLayout = "2006-01-02"

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
		now: time.Now,
	}
}

// DailyPrice is one closing price observation
type DailyPrice struct {
	Date          string   `json:"date"`
	Close         float64  `json:"close"`
	AdjustedClose *float64 `json:"adjusted_close,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
}

// Price returns the adjusted close when present, the close otherwise.
func (p DailyPrice) Price() float64 {
	if p.AdjustedClose != nil {
		return *p.AdjustedClose
	}
	return p.Close
}

// UpsertPrices inserts or replaces prices for a ticker in one transaction.
func (h *HistoryDB) UpsertPrices(ctx context.Context, ticker, source string, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}
	updatedAt := h.now().Unix()

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_prices (ticker, date, close, adjusted_close, volume, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ticker, date) DO UPDATE SET
				close = excluded.close,
				adjusted_close = excluded.adjusted_close,
				volume = excluded.volume,
				source = excluded.source,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if _, err := time.Parse(DateLayout, p.Date); err != nil {
				return fmt.Errorf("invalid date %q for %s: %w", p.Date, ticker, err)
			}
			if p.Close <= 0 {
				return fmt.Errorf("non-positive close %v for %s on %s", p.Close, ticker, p.Date)
			}

			adjusted := sql.NullFloat64{}
			if p.AdjustedClose != nil {
				adjusted = sql.NullFloat64{Float64: *p.AdjustedClose, Valid: true}
			}
			volume := sql.NullInt64{}
			if p.Volume != nil {
				volume = sql.NullInt64{Int64: *p.Volume, Valid: true}
			}

			if _, err := stmt.ExecContext(ctx, ticker, p.Date, p.Close, adjusted, volume, source, updatedAt); err != nil {
				return fmt.Errorf("failed to upsert price for %s on %s: %w", ticker, p.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Debug().
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Upserted daily prices")
	return nil
}

// GetDailyPrices returns prices for a ticker on or after since, oldest first.
// A zero since returns the full history.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, ticker string, since time.Time) ([]DailyPrice, error) {
	from := ""
	if !since.IsZero() {
		from = since.UTC().Format(DateLayout)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT date, close, adjusted_close, volume
		FROM daily_prices
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC
	`, ticker, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	prices := make([]DailyPrice, 0)
	for rows.Next() {
		var p DailyPrice
		var adjusted sql.NullFloat64
		var volume sql.NullInt64

		if err := rows.Scan(&p.Date, &p.Close, &adjusted, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if adjusted.Valid {
			p.AdjustedClose = &adjusted.Float64
		}
		if volume.Valid {
			p.Volume = &volume.Int64
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// TickerSummary describes the stored history of one ticker
type TickerSummary struct {
	Ticker    string `json:"ticker"`
	FirstDate string `json:"first_date"`
	LastDate  string `json:"last_date"`
	Count     int    `json:"count"`
}

// ListTickers summarizes every ticker with stored prices.
func (h *HistoryDB) ListTickers(ctx context.Context) ([]TickerSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT ticker, MIN(date), MAX(date), COUNT(*)
		FROM daily_prices
		GROUP BY ticker
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	summaries := make([]TickerSummary, 0)
	for rows.Next() {
		var s TickerSummary
		if err := rows.Scan(&s.Ticker, &s.FirstDate, &s.LastDate, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan ticker summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// IsImported reports whether a file with this checksum was already imported.
func (h *HistoryDB) IsImported(ctx context.Context, fileName, checksum string) (bool, error) {
	var stored string
	err := h.db.QueryRowContext(ctx, "SELECT checksum FROM price_imports WHERE file_name = ?", fileName).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check import %s: %w", fileName, err)
	}
	return stored == checksum, nil
}

// RecordImport marks a file as imported.
func (h *HistoryDB) RecordImport(ctx context.Context, fileName, checksum string, rowsImported int) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO price_imports (file_name, checksum, rows_imported, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			checksum = excluded.checksum,
			rows_imported = excluded.rows_imported,
			imported_at = excluded.imported_at
	`, fileName, checksum, rowsImported, h.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record import %s: %w", fileName, err)
	}
	return nil
}
