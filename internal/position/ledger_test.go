package position

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AppendAndSum(t *testing.T) {
	l := NewLedger()

	l.Append("ETHUSDT", 4.9)
	l.Append("ETHUSDT", -1.2)
	l.Append("BTCUSDT", 2.5)

	assert.InDelta(t, 3.7, l.ProfitFor("ETHUSDT"), 1e-9)
	assert.InDelta(t, 2.5, l.ProfitFor("BTCUSDT"), 1e-9)
	assert.InDelta(t, 6.2, l.TotalProfit(), 1e-9)
}

func TestLedger_AbsentTickerIsZero(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, 0.0, l.ProfitFor("DOGEUSDT"))
	assert.Equal(t, 0.0, l.TotalProfit())
}

func TestLedger_SamplesPreserveExitOrder(t *testing.T) {
	l := NewLedger()
	l.Append("ETHUSDT", 1)
	l.Append("ETHUSDT", 2)
	l.Append("ETHUSDT", 3)

	require.Equal(t, []float64{1, 2, 3}, l.Samples("ETHUSDT"))

	// The returned slice is a copy.
	l.Samples("ETHUSDT")[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, l.Samples("ETHUSDT"))
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger()
	l.Append("ETHUSDT", 4.9)
	l.Reset()

	assert.Equal(t, 0.0, l.TotalProfit())
	assert.Empty(t, l.Samples("ETHUSDT"))
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	l := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append("ETHUSDT", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, l.ProfitFor("ETHUSDT"))
	require.Len(t, l.Samples("ETHUSDT"), 50)
}
