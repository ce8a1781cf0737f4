// internal/market/candle.go
package market

import "time"

// Candle is a single price/time sample for an instrument.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Series is a sliding window of candles for one instrument, oldest first.
// It is not safe for concurrent use; each instrument's window has a single
// owner (the runner goroutine that feeds it).
type Series struct {
	candles []Candle
	maxSize int
}

// NewSeries creates a series that keeps at most maxSize candles.
func NewSeries(maxSize int) *Series {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Series{
		candles: make([]Candle, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push appends a candle, evicting the oldest one when the window is full.
func (s *Series) Push(c Candle) {
	if len(s.candles) >= s.maxSize {
		copy(s.candles, s.candles[1:])
		s.candles = s.candles[:len(s.candles)-1]
	}
	s.candles = append(s.candles, c)
}

// Last returns the most recent candle.
func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Clone returns an independent copy of the series.
func (s *Series) Clone() *Series {
	out := &Series{
		candles: make([]Candle, len(s.candles)),
		maxSize: s.maxSize,
	}
	copy(out.candles, s.candles)
	return out
}

// Len returns the number of candles currently held.
func (s *Series) Len() int {
	return len(s.candles)
}

// Closes returns the close values of all candles, oldest first.
func (s *Series) Closes() []float64 {
	return s.project(func(c Candle) float64 { return c.Close })
}

// Highs returns the high values of all candles, oldest first.
func (s *Series) Highs() []float64 {
	return s.project(func(c Candle) float64 { return c.High })
}

// Lows returns the low values of all candles, oldest first.
func (s *Series) Lows() []float64 {
	return s.project(func(c Candle) float64 { return c.Low })
}

func (s *Series) project(f func(Candle) float64) []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = f(c)
	}
	return out
}
