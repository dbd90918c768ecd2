package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator).
// Returns NaN when fewer than two observations are available.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return math.NaN()
	}
	return stat.StdDev(data, nil)
}

// PortfolioReturns calculates the per-period return series of a portfolio.
//
// Formula: r_p(t) = Σ_i w_i × r_i(t)
//
// returns is a T×N matrix (rows are periods, columns are assets in weight order).
func PortfolioReturns(returns mat.Matrix, w []float64) ([]float64, error) {
	rows, cols := returns.Dims()
	if len(w) != cols {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrDimensionMismatch, len(w), cols)
	}

	var out mat.VecDense
	out.MulVec(returns, mat.NewVecDense(cols, w))

	series := make([]float64, rows)
	for t := 0; t < rows; t++ {
		series[t] = out.AtVec(t)
	}
	return series, nil
}

// AnnualizedVolatility calculates annualized volatility of a periodic returns series.
// Formula: sample std dev × sqrt(annualization factor)
func AnnualizedVolatility(series []float64, freq Frequency) (float64, error) {
	af, err := AnnualizationFactor(freq)
	if err != nil {
		return 0, err
	}
	if len(series) < 2 {
		return 0, fmt.Errorf("%w: volatility needs at least 2 returns, got %d", ErrInsufficientData, len(series))
	}
	return StdDev(series) * math.Sqrt(float64(af)), nil
}

// AnnualizedReturn calculates the annualized geometric mean return.
//
// Formula: expm1(mean(log1p(r)) × af)
//
// Working in log1p/expm1 space keeps precision for small periodic returns.
func AnnualizedReturn(series []float64, freq Frequency) (float64, error) {
	af, err := AnnualizationFactor(freq)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("%w: no returns", ErrInsufficientData)
	}

	logReturns := make([]float64, len(series))
	for i, r := range series {
		if r <= -1 {
			return 0, fmt.Errorf("%w: r[%d] = %v", ErrReturnBelowMinusOne, i, r)
		}
		logReturns[i] = math.Log1p(r)
	}

	return math.Expm1(Mean(logReturns) * float64(af)), nil
}

// SampleCovariance calculates the N×N sample covariance (n-1 denominator) of a T×N returns matrix.
func SampleCovariance(returns mat.Matrix) (*mat.SymDense, error) {
	rows, _ := returns.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("%w: covariance needs at least 2 periods, got %d", ErrInsufficientData, rows)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)
	return &cov, nil
}

// AnnualizedCovariance scales the sample covariance by the annualization factor of freq.
func AnnualizedCovariance(returns mat.Matrix, freq Frequency) (*mat.SymDense, error) {
	af, err := AnnualizationFactor(freq)
	if err != nil {
		return nil, err
	}

	cov, err := SampleCovariance(returns)
	if err != nil {
		return nil, err
	}

	cov.ScaleSym(float64(af), cov)
	return cov, nil
}

// AnnualizedMeans returns each column's arithmetic mean return × annualization factor.
func AnnualizedMeans(returns mat.Matrix, freq Frequency) ([]float64, error) {
	af, err := AnnualizationFactor(freq)
	if err != nil {
		return nil, err
	}

	_, cols := returns.Dims()
	mu := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mu[j] = Mean(mat.Col(nil, j, returns)) * float64(af)
	}
	return mu, nil
}

// PortfolioVariance calculates w'Σw.
func PortfolioVariance(w []float64, cov mat.Symmetric) (float64, error) {
	n := cov.SymmetricDim()
	if len(w) != n {
		return 0, fmt.Errorf("%w: %d weights for %dx%d covariance", ErrDimensionMismatch, len(w), n, n)
	}
	wv := mat.NewVecDense(n, w)
	return mat.Inner(wv, cov, wv), nil
}
