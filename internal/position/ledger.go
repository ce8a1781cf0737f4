// internal/position/ledger.go
package position

import "sync"

// Ledger accumulates realized-profit percentages per ticker. Samples are
// append-only; nothing else ever mutates a ticker's series.
type Ledger struct {
	mu      sync.RWMutex
	samples map[string][]float64
}

// NewLedger creates an empty profit ledger.
func NewLedger() *Ledger {
	return &Ledger{
		samples: make(map[string][]float64),
	}
}

// Append records one realized-profit sample for a ticker.
func (l *Ledger) Append(ticker string, profit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples[ticker] = append(l.samples[ticker], profit)
}

// ProfitFor returns the sum of all samples for a ticker. A ticker with no
// samples yields zero.
func (l *Ledger) ProfitFor(ticker string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, p := range l.samples[ticker] {
		total += p
	}
	return total
}

// TotalProfit returns the sum of all samples across all tickers.
func (l *Ledger) TotalProfit() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, series := range l.samples {
		for _, p := range series {
			total += p
		}
	}
	return total
}

// Samples returns a copy of the profit series for a ticker in exit order.
func (l *Ledger) Samples(ticker string) []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	series := l.samples[ticker]
	out := make([]float64, len(series))
	copy(out, series)
	return out
}

// Reset discards all recorded samples.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = make(map[string][]float64)
}
