// Package indicator provides technical indicator series over candle data.
//
// The engine consumes the Calculator interface; Local is the default
// in-process implementation.
package indicator

import (
	"context"
	"errors"
)

// Kind identifies a supported indicator.
type Kind string

const (
	KindMACD  Kind = "MACD"
	KindRSI   Kind = "RSI"
	KindStoch Kind = "STOCH"
)

// ErrInsufficientData is returned when the candle window is shorter than an
// indicator's warm-up requirement.
var ErrInsufficientData = errors.New("insufficient candle data")

// MACDConfig configures the MACD calculation.
type MACDConfig struct {
	FastPeriod   int `mapstructure:"fast_period"`
	SlowPeriod   int `mapstructure:"slow_period"`
	SignalPeriod int `mapstructure:"signal_period"`
}

// RSIConfig configures the RSI calculation.
type RSIConfig struct {
	Period int `mapstructure:"period"`
}

// StochConfig configures the stochastic oscillator calculation.
type StochConfig struct {
	KPeriod  int `mapstructure:"k_period"`
	KSlowing int `mapstructure:"k_slowing"`
	DPeriod  int `mapstructure:"d_period"`
}

// StrategyConfig bundles the indicator parameters a strategy trades with.
type StrategyConfig struct {
	MACD  MACDConfig  `mapstructure:"macd"`
	RSI   RSIConfig   `mapstructure:"rsi"`
	Stoch StochConfig `mapstructure:"stoch"`
}

// DefaultStrategyConfig returns the conventional parameter set.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		MACD:  MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
		RSI:   RSIConfig{Period: 14},
		Stoch: StochConfig{KPeriod: 14, KSlowing: 3, DPeriod: 3},
	}
}

// MinCandles returns the number of candles needed before every indicator in
// the set can produce a value.
func (c StrategyConfig) MinCandles() int {
	min := c.MACD.SlowPeriod + c.MACD.SignalPeriod - 1
	if n := c.RSI.Period + 1; n > min {
		min = n
	}
	if n := c.Stoch.KPeriod + c.Stoch.KSlowing + c.Stoch.DPeriod - 2; n > min {
		min = n
	}
	return min
}

// Calculator produces indicator series from price series. Implementations
// are pure functions of their input and safe for concurrent use.
type Calculator interface {
	// MACD returns the MACD histogram series (MACD line minus signal line).
	MACD(ctx context.Context, cfg MACDConfig, closes []float64) ([]float64, error)

	// RSI returns the Wilder-smoothed RSI series.
	RSI(ctx context.Context, cfg RSIConfig, closes []float64) ([]float64, error)

	// Stoch returns the smoothed %D series of the stochastic oscillator.
	Stoch(ctx context.Context, cfg StochConfig, highs, lows, closes []float64) ([]float64, error)
}
