package optimization

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/allocator/internal/modules/riskprofile"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	entries map[string]Result
	gets    int
	hits    int
	sets    int
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]Result)}
}

func (c *memoryCache) GetMsgpack(key string, dst interface{}) (bool, error) {
	c.gets++
	if c.failGet {
		return false, errors.New("cache unavailable")
	}
	r, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	*dst.(*Result) = *r.clone()
	return true, nil
}

func (c *memoryCache) SetMsgpack(key string, value interface{}, ttl time.Duration) error {
	c.sets++
	c.entries[key] = *value.(*Result).clone()
	return nil
}

func newTestService(opts Options) *Service {
	return NewService(NewOptimizer(DefaultSolverSettings()), opts, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		label riskprofile.Label
		want  Strategy
	}{
		{riskprofile.Conservative, StrategyMinVolatility},
		{riskprofile.Moderate, StrategyRiskParity},
		{riskprofile.Aggressive, StrategyMaxSharpe},
	}
	for _, tt := range tests {
		got, err := StrategyFor(tt.label)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.label.String())
	}

	_, err := StrategyFor(riskprofile.Label(0))
	assert.ErrorIs(t, err, ErrUnknownProfile)
	_, err = StrategyFor(riskprofile.Label(99))
	assert.ErrorIs(t, err, riskprofile.ErrUnknownProfile)
}

func TestService_SelectAndOptimize(t *testing.T) {
	service := newTestService(DefaultOptions())
	returns := hadamardReturns(t, []float64{0.01, 0.02}, []float64{0.05, 0.05})

	for _, label := range riskprofile.Labels {
		t.Run(label.String(), func(t *testing.T) {
			profile, err := riskprofile.ProfileFor(label)
			require.NoError(t, err)

			res, err := service.SelectAndOptimize(returns, profile, formulas.Monthly)
			require.NoError(t, err)
			assertFeasible(t, res.Weights)

			want, _ := StrategyFor(label)
			assert.Equal(t, want, res.Strategy)
			if label == riskprofile.Aggressive {
				assert.InDelta(t, DefaultRiskFreeRate, res.RiskFreeRate, 1e-12)
			}
		})
	}

	_, err := service.SelectAndOptimize(returns, riskprofile.Profile{}, formulas.Monthly)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestService_RiskFreeRateOverride(t *testing.T) {
	returns := hadamardReturns(t, []float64{0.01, 0.02}, []float64{0.05, 0.05})
	aggressive, err := riskprofile.ProfileFor(riskprofile.Aggressive)
	require.NoError(t, err)

	configured := newTestService(Options{RiskFreeRate: 0.10})
	assert.InDelta(t, 0.10, configured.RiskFreeRate(), 1e-12)

	res, err := configured.SelectAndOptimize(returns, aggressive, formulas.Monthly)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, res.RiskFreeRate, 1e-12)
	// Excess returns 0.02 and 0.14 with equal variances.
	assert.InDeltaSlice(t, []float64{0.02 / 0.16, 0.14 / 0.16}, res.Weights, 0.02)

	res, err = configured.SelectAndOptimizeWithRate(returns, aggressive, formulas.Monthly, 0.04)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.08 / 0.28, 0.20 / 0.28}, res.Weights, 0.02)
}

func TestService_Cache(t *testing.T) {
	cache := newMemoryCache()
	service := newTestService(Options{RiskFreeRate: 0.04, CacheTTL: time.Hour})
	service.SetCache(cache)
	returns := hadamardReturns(t, []float64{0, 0}, []float64{0.1, 0.2})

	first, err := service.OptimizeStrategy(returns, StrategyMinVolatility, formulas.Daily, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 0, cache.hits)

	second, err := service.OptimizeStrategy(returns, StrategyMinVolatility, formulas.Daily, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Weights, second.Weights)

	// Returned results are copies.
	second.Weights[0] = 42
	third, err := service.OptimizeStrategy(returns, StrategyMinVolatility, formulas.Daily, 0)
	require.NoError(t, err)
	assert.Equal(t, first.Weights, third.Weights)

	// A different strategy is a different key.
	_, err = service.OptimizeStrategy(returns, StrategyRiskParity, formulas.Daily, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)

	// The risk-free rate only keys max Sharpe.
	_, err = service.OptimizeStrategy(returns, StrategyMinVolatility, formulas.Daily, 0.07)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)

	cache.failGet = true
	_, err = service.OptimizeStrategy(returns, StrategyMinVolatility, formulas.Daily, 0)
	assert.NoError(t, err)
}

func TestCacheKey(t *testing.T) {
	a := hadamardReturns(t, []float64{0, 0}, []float64{0.1, 0.2})
	b := hadamardReturns(t, []float64{0, 0}, []float64{0.1, 0.21})

	assert.Equal(t, cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.04), cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.04))
	assert.NotEqual(t, cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.04), cacheKey(b, StrategyMaxSharpe, formulas.Daily, 0.04))
	assert.NotEqual(t, cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.04), cacheKey(a, StrategyMaxSharpe, formulas.Weekly, 0.04))
	assert.NotEqual(t, cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.04), cacheKey(a, StrategyMaxSharpe, formulas.Daily, 0.05))
}

func TestAnalyze(t *testing.T) {
	returns := randomReturns(t, 250, 3, 11)
	weights := []float64{0.5, 0.3, 0.2}

	m, err := Analyze(returns, weights, formulas.Daily, 0.04)
	require.NoError(t, err)

	assert.Greater(t, m.AnnualizedVolatility, 0.0)
	assert.True(t, m.SharpeRatio.Defined)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
	assert.Equal(t, DefaultCVaRAlpha, m.CVaRAlpha)
	assert.GreaterOrEqual(t, m.ExpectedShortfall, m.CVaR)
	require.Len(t, m.RiskContributions, 3)

	var total float64
	for _, rc := range m.RiskContributions {
		total += rc
	}
	assert.InDelta(t, m.AnnualizedVolatility, total, 1e-9)

	_, err = Analyze(returns, []float64{1}, formulas.Daily, 0.04)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	short := hadamardReturns(t, []float64{0}, []float64{0.01})
	_, err = Analyze(short, []float64{1}, "X", 0)
	assert.ErrorIs(t, err, formulas.ErrInvalidFrequency)
}

func TestService_AnalyzeFlatPortfolio(t *testing.T) {
	service := newTestService(DefaultOptions())
	flat, err := NewReturnsMatrix([]string{"CASH"}, [][]float64{{0.001}, {0.001}, {0.001}})
	require.NoError(t, err)

	m, err := service.Analyze(flat, []float64{1}, formulas.Daily)
	require.NoError(t, err)
	assert.False(t, m.SharpeRatio.Defined)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.InDelta(t, 0.0, m.RiskContributions["CASH"], 1e-9)
}
