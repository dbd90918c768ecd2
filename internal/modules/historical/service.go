package historical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrNoPriceData is returned when none of the requested tickers has stored prices.
var ErrNoPriceData = fmt.Errorf("%w: no price data for requested tickers", optimization.ErrInsufficientData)

// maxConcurrentLoads bounds parallel ticker reads against SQLite.
const maxConcurrentLoads = 8

// PriceReader is the read side of HistoryDB
type PriceReader interface {
	GetDailyPrices(ctx context.Context, ticker string, since time.Time) ([]DailyPrice, error)
}

// Service builds return matrices from stored prices
type Service struct {
	prices PriceReader
	log    zerolog.Logger
}

// NewService creates a new historical service
func NewService(prices PriceReader, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		log:    log.With().Str("service", "historical").Logger(),
	}
}

// BuildReturnsMatrix loads prices for tickers, keeps only the dates every
// remaining ticker has, and converts them to period returns at freq.
// Tickers with no stored prices are dropped and logged. Column order follows
// the order of tickers.
func (s *Service) BuildReturnsMatrix(ctx context.Context, tickers []string, since time.Time, freq formulas.Frequency) (*optimization.ReturnsMatrix, error) {
	if _, err := formulas.AnnualizationFactor(freq); err != nil {
		return nil, err
	}
	tickers = normalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers requested", optimization.ErrInsufficientData)
	}

	series := make([][]DailyPrice, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			prices, err := s.prices.GetDailyPrices(gctx, ticker, since)
			if err != nil {
				return fmt.Errorf("failed to load prices for %s: %w", ticker, err)
			}
			series[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(tickers))
	keptSeries := make([][]DailyPrice, 0, len(tickers))
	for i, ticker := range tickers {
		if len(series[i]) == 0 {
			s.log.Warn().Str("ticker", ticker).Msg("No price data, dropping ticker")
			continue
		}
		kept = append(kept, ticker)
		keptSeries = append(keptSeries, series[i])
	}
	if len(kept) == 0 {
		return nil, ErrNoPriceData
	}

	dates, aligned := AlignPrices(keptSeries)
	if len(dates) < len(keptSeries[0]) {
		s.log.Debug().
			Int("common_dates", len(dates)).
			Int("tickers", len(kept)).
			Msg("Aligned price series on common dates")
	}

	columns := make(map[string][]float64, len(kept))
	for i, ticker := range kept {
		_, values, err := periodReturns(dates, aligned[i], freq)
		if err != nil {
			return nil, fmt.Errorf("failed to compute returns for %s: %w", ticker, err)
		}
		columns[ticker] = values
	}

	returns, err := optimization.NewReturnsMatrixFromColumns(kept, columns)
	if err != nil {
		return nil, err
	}

	periods, assets := returns.Dims()
	s.log.Debug().
		Int("periods", periods).
		Int("assets", assets).
		Str("frequency", freq.String()).
		Msg("Built returns matrix")
	return returns, nil
}

// AlignPrices keeps the dates present in every series (an inner join) and
// returns them ascending with one price column per series.
func AlignPrices(series [][]DailyPrice) ([]string, [][]float64) {
	if len(series) == 0 {
		return []string{}, [][]float64{}
	}

	counts := make(map[string]int)
	for _, s := range series {
		seen := make(map[string]bool, len(s))
		for _, p := range s {
			if !seen[p.Date] {
				seen[p.Date] = true
				counts[p.Date]++
			}
		}
	}

	dates := make([]string, 0, len(counts))
	for date, n := range counts {
		if n == len(series) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	index := make(map[string]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	columns := make([][]float64, len(series))
	for i, s := range series {
		col := make([]float64, len(dates))
		for _, p := range s {
			if j, ok := index[p.Date]; ok {
				col[j] = p.Price()
			}
		}
		columns[i] = col
	}
	return dates, columns
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
