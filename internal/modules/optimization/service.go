package optimization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/modules/riskprofile"
	"github.com/aristath/allocator/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultRiskFreeRate is the annual rate used for the Aggressive profile.
	DefaultRiskFreeRate = 0.04
	// DefaultCVaRAlpha is the tail level reported by Analyze.
	DefaultCVaRAlpha = 0.05
)

// ResultCache stores serialized results. calculations.Cache implements it.
type ResultCache interface {
	GetMsgpack(key string, dst interface{}) (bool, error)
	SetMsgpack(key string, value interface{}, ttl time.Duration) error
}

// Options configures the service.
type Options struct {
	// RiskFreeRate is used by max Sharpe when the caller does not override it.
	RiskFreeRate float64
	// CacheTTL is how long results stay cached. Zero disables caching.
	CacheTTL time.Duration
}

// DefaultOptions returns the service defaults.
func DefaultOptions() Options {
	return Options{RiskFreeRate: DefaultRiskFreeRate}
}

// Service maps risk profiles to optimization strategies and reports portfolio metrics.
type Service struct {
	optimizer *Optimizer
	opts      Options
	cache     ResultCache
	log       zerolog.Logger
}

// NewService creates a new optimization service.
func NewService(optimizer *Optimizer, opts Options, log zerolog.Logger) *Service {
	return &Service{
		optimizer: optimizer,
		opts:      opts,
		log:       log.With().Str("service", "optimization").Logger(),
	}
}

// SetCache enables result caching. Pass nil to disable it.
func (s *Service) SetCache(cache ResultCache) {
	s.cache = cache
}

// RiskFreeRate returns the configured default rate.
func (s *Service) RiskFreeRate() float64 {
	return s.opts.RiskFreeRate
}

// StrategyFor maps a profile label to its strategy.
func StrategyFor(label riskprofile.Label) (Strategy, error) {
	switch label {
	case riskprofile.Conservative:
		return StrategyMinVolatility, nil
	case riskprofile.Moderate:
		return StrategyRiskParity, nil
	case riskprofile.Aggressive:
		return StrategyMaxSharpe, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnknownProfile, label)
}

// SelectAndOptimize optimizes with the strategy of the profile's label,
// using the configured risk-free rate for max Sharpe.
func (s *Service) SelectAndOptimize(returns *ReturnsMatrix, profile riskprofile.Profile, freq formulas.Frequency) (*Result, error) {
	return s.SelectAndOptimizeWithRate(returns, profile, freq, s.opts.RiskFreeRate)
}

// SelectAndOptimizeWithRate is SelectAndOptimize with an explicit risk-free rate.
func (s *Service) SelectAndOptimizeWithRate(returns *ReturnsMatrix, profile riskprofile.Profile, freq formulas.Frequency, riskFreeRate float64) (*Result, error) {
	strategy, err := StrategyFor(profile.Label)
	if err != nil {
		return nil, err
	}
	return s.OptimizeStrategy(returns, strategy, freq, riskFreeRate)
}

// OptimizeStrategy runs the given strategy, consulting the cache when enabled.
func (s *Service) OptimizeStrategy(returns *ReturnsMatrix, strategy Strategy, freq formulas.Frequency, riskFreeRate float64) (*Result, error) {
	start := time.Now()
	if strategy != StrategyMaxSharpe {
		riskFreeRate = 0
	}
	periods, assets := 0, 0
	if returns != nil {
		periods, assets = returns.Dims()
	}
	log := s.log.With().
		Str("strategy", string(strategy)).
		Str("frequency", string(freq)).
		Int("assets", assets).
		Int("periods", periods).
		Logger()

	key := ""
	if s.cache != nil && s.opts.CacheTTL > 0 && returns != nil {
		key = cacheKey(returns, strategy, freq, riskFreeRate)
		var cached Result
		found, err := s.cache.GetMsgpack(key, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read cached optimization result")
		} else if found {
			log.Debug().Str("cache_key", key).Msg("Optimization cache hit")
			return &cached, nil
		}
	}

	result, err := s.optimizer.Optimize(returns, strategy, freq, riskFreeRate)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Optimization failed")
		return nil, err
	}

	event := log.Info()
	if !result.Converged {
		event = log.Warn()
	}
	event.
		Bool("converged", result.Converged).
		Str("status", result.Status).
		Str("method", result.Method).
		Int("iterations", result.Iterations).
		Dur("duration", time.Since(start)).
		Msg("Optimization complete")

	if key != "" {
		if err := s.cache.SetMsgpack(key, result, s.opts.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache optimization result")
		}
	}
	return result.clone(), nil
}

// Analyze computes metrics of a weighted portfolio over the returns matrix.
func (s *Service) Analyze(returns *ReturnsMatrix, weights []float64, freq formulas.Frequency) (*PortfolioMetrics, error) {
	return Analyze(returns, weights, freq, s.opts.RiskFreeRate)
}

// Analyze computes metrics of a weighted portfolio over the returns matrix.
func Analyze(returns *ReturnsMatrix, weights []float64, freq formulas.Frequency, riskFreeRate float64) (*PortfolioMetrics, error) {
	if returns == nil {
		return nil, fmt.Errorf("%w: no returns", ErrInsufficientData)
	}
	periods, assets := returns.Dims()
	if len(weights) != assets {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrDimensionMismatch, len(weights), assets)
	}
	if assets == 0 || periods < 2 {
		return nil, fmt.Errorf("%w: metrics need at least 2 periods and 1 asset", ErrInsufficientData)
	}

	series, err := formulas.PortfolioReturns(returns.Matrix(), weights)
	if err != nil {
		return nil, err
	}

	vol, err := formulas.AnnualizedVolatility(series, freq)
	if err != nil {
		return nil, err
	}
	annReturn, err := formulas.AnnualizedReturn(series, freq)
	if err != nil {
		return nil, err
	}
	sharpe, err := formulas.SharpeRatio(series, riskFreeRate, freq)
	if err != nil {
		return nil, err
	}

	cov, err := formulas.AnnualizedCovariance(returns.Matrix(), freq)
	if err != nil {
		return nil, err
	}
	rc, err := formulas.RiskContributions(weights, cov)
	if err != nil {
		return nil, err
	}
	contributions := make(map[string]float64, assets)
	for i, t := range returns.Tickers {
		contributions[t] = rc[i]
	}

	return &PortfolioMetrics{
		AnnualizedVolatility: vol,
		AnnualizedReturn:     annReturn,
		SharpeRatio:          sharpe,
		RiskFreeRate:         riskFreeRate,
		MaxDrawdown:          formulas.MaxDrawdown(series),
		CVaRAlpha:            DefaultCVaRAlpha,
		CVaR:                 formulas.CVaRHistorical(series, DefaultCVaRAlpha),
		ExpectedShortfall:    formulas.ExpectedShortfall(series, DefaultCVaRAlpha),
		RiskContributions:    contributions,
	}, nil
}

// cacheKey hashes everything that determines a result.
func cacheKey(returns *ReturnsMatrix, strategy Strategy, freq formulas.Frequency, riskFreeRate float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", strings.Join(returns.Tickers, ","), strategy, freq)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(riskFreeRate))
	h.Write(buf[:])

	if m := returns.Matrix(); m != nil {
		periods, assets := m.Dims()
		fmt.Fprintf(h, "%dx%d|", periods, assets)
		raw := m.(*mat.Dense).RawMatrix()
		for t := 0; t < raw.Rows; t++ {
			for _, v := range raw.Data[t*raw.Stride : t*raw.Stride+raw.Cols] {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
				h.Write(buf[:])
			}
		}
	}

	return "optimization:" + hex.EncodeToString(h.Sum(nil)[:16])
}
