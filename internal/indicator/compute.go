// internal/indicator/compute.go
package indicator

import (
	"context"
	"fmt"
)

// Local computes indicators in-process.
type Local struct{}

// NewLocal creates the in-process calculator.
func NewLocal() *Local {
	return &Local{}
}

// MACD returns the MACD histogram series.
func (l *Local) MACD(ctx context.Context, cfg MACDConfig, closes []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= cfg.FastPeriod || cfg.SignalPeriod <= 0 {
		return nil, fmt.Errorf("invalid MACD config: fast=%d slow=%d signal=%d",
			cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod)
	}
	need := cfg.SlowPeriod + cfg.SignalPeriod - 1
	if len(closes) < need {
		return nil, fmt.Errorf("MACD needs %d closes, have %d: %w", need, len(closes), ErrInsufficientData)
	}

	fast := ema(closes, cfg.FastPeriod)
	slow := ema(closes, cfg.SlowPeriod)

	// Align the fast EMA to the slow EMA's first defined point.
	offset := cfg.SlowPeriod - cfg.FastPeriod
	macdLine := make([]float64, len(slow))
	for i := range slow {
		macdLine[i] = fast[i+offset] - slow[i]
	}

	signal := ema(macdLine, cfg.SignalPeriod)
	histogram := make([]float64, len(signal))
	for i := range signal {
		histogram[i] = macdLine[i+cfg.SignalPeriod-1] - signal[i]
	}
	return histogram, nil
}

// RSI returns the Wilder-smoothed RSI series.
func (l *Local) RSI(ctx context.Context, cfg RSIConfig, closes []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("invalid RSI period: %d", cfg.Period)
	}
	if len(closes) < cfg.Period+1 {
		return nil, fmt.Errorf("RSI needs %d closes, have %d: %w", cfg.Period+1, len(closes), ErrInsufficientData)
	}

	period := float64(cfg.Period)
	var avgGain, avgLoss float64
	for i := 1; i <= cfg.Period; i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= period
	avgLoss /= period

	out := make([]float64, 0, len(closes)-cfg.Period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := cfg.Period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		var gain, loss float64
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*(period-1) + gain) / period
		avgLoss = (avgLoss*(period-1) + loss) / period
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out, nil
}

// Stoch returns the smoothed %D series.
func (l *Local) Stoch(ctx context.Context, cfg StochConfig, highs, lows, closes []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.KPeriod <= 0 || cfg.KSlowing <= 0 || cfg.DPeriod <= 0 {
		return nil, fmt.Errorf("invalid STOCH config: k=%d slowing=%d d=%d",
			cfg.KPeriod, cfg.KSlowing, cfg.DPeriod)
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, fmt.Errorf("STOCH series length mismatch: highs=%d lows=%d closes=%d",
			len(highs), len(lows), len(closes))
	}
	need := cfg.KPeriod + cfg.KSlowing + cfg.DPeriod - 2
	if len(closes) < need {
		return nil, fmt.Errorf("STOCH needs %d candles, have %d: %w", need, len(closes), ErrInsufficientData)
	}

	raw := make([]float64, 0, len(closes)-cfg.KPeriod+1)
	for i := cfg.KPeriod - 1; i < len(closes); i++ {
		hh, ll := highs[i], lows[i]
		for j := i - cfg.KPeriod + 1; j < i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		if hh == ll {
			// Flat window: price sits mid-range by convention.
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, 100*(closes[i]-ll)/(hh-ll))
	}

	slowK := sma(raw, cfg.KSlowing)
	return sma(slowK, cfg.DPeriod), nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ema returns the exponential moving average seeded with the SMA of the
// first period values. Output starts at index period-1 of the input.
func ema(values []float64, period int) []float64 {
	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	prev := sum / float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, prev)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		prev += k * (v - prev)
		out = append(out, prev)
	}
	return out
}

// sma returns the simple moving average. Output starts at index period-1 of
// the input.
func sma(values []float64, period int) []float64 {
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
