package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ReturnsMatrix is a T×N table of periodic fractional returns. Column j holds
// the returns of Tickers[j]; weight vectors use the same order.
type ReturnsMatrix struct {
	Tickers []string
	data    *mat.Dense
}

// NewReturnsMatrix builds a returns matrix from row-major periods.
// Every row must have one finite value per ticker. An empty matrix is
// accepted here and rejected by the optimizer.
func NewReturnsMatrix(tickers []string, rows [][]float64) (*ReturnsMatrix, error) {
	if err := validateTickers(tickers); err != nil {
		return nil, err
	}

	n := len(tickers)
	if n == 0 || len(rows) == 0 {
		for i, row := range rows {
			if len(row) != n {
				return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrInvalidReturns, i, len(row), n)
			}
		}
		return &ReturnsMatrix{Tickers: copyStrings(tickers)}, nil
	}

	data := make([]float64, 0, len(rows)*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrInvalidReturns, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value at row %d, column %s", ErrInvalidReturns, i, tickers[j])
			}
		}
		data = append(data, row...)
	}

	return &ReturnsMatrix{
		Tickers: copyStrings(tickers),
		data:    mat.NewDense(len(rows), n, data),
	}, nil
}

// NewReturnsMatrixFromColumns builds a returns matrix from per-ticker series of equal length.
func NewReturnsMatrixFromColumns(tickers []string, columns map[string][]float64) (*ReturnsMatrix, error) {
	if len(tickers) == 0 {
		return NewReturnsMatrix(tickers, nil)
	}

	periods := len(columns[tickers[0]])
	rows := make([][]float64, periods)
	for t := range rows {
		rows[t] = make([]float64, len(tickers))
	}
	for j, ticker := range tickers {
		col, ok := columns[ticker]
		if !ok {
			return nil, fmt.Errorf("%w: no returns for %s", ErrInvalidReturns, ticker)
		}
		if len(col) != periods {
			return nil, fmt.Errorf("%w: %s has %d periods, expected %d", ErrInvalidReturns, ticker, len(col), periods)
		}
		for t, v := range col {
			rows[t][j] = v
		}
	}
	return NewReturnsMatrix(tickers, rows)
}

// Dims returns the number of periods and assets.
func (r *ReturnsMatrix) Dims() (periods, assets int) {
	if r.data == nil {
		return 0, len(r.Tickers)
	}
	return r.data.Dims()
}

// Matrix exposes the underlying T×N matrix. It is nil for an empty matrix
// and must not be modified.
func (r *ReturnsMatrix) Matrix() mat.Matrix {
	if r.data == nil {
		return nil
	}
	return r.data
}

// Rows returns a copy of the data in row-major periods.
func (r *ReturnsMatrix) Rows() [][]float64 {
	periods, assets := r.Dims()
	rows := make([][]float64, periods)
	for t := range rows {
		rows[t] = make([]float64, assets)
		mat.Row(rows[t], t, r.data)
	}
	return rows
}

// Column returns a copy of one ticker's return series.
func (r *ReturnsMatrix) Column(ticker string) ([]float64, bool) {
	for j, tk := range r.Tickers {
		if tk == ticker {
			if r.data == nil {
				return []float64{}, true
			}
			return mat.Col(nil, j, r.data), true
		}
	}
	return nil, false
}

func validateTickers(tickers []string) error {
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		if t == "" {
			return fmt.Errorf("%w: empty ticker", ErrInvalidReturns)
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("%w: duplicate ticker %s", ErrInvalidReturns, t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
