package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandle(closePrice float64) Candle {
	return Candle{
		OpenTime: time.Now(),
		Open:     closePrice - 1,
		High:     closePrice + 2,
		Low:      closePrice - 2,
		Close:    closePrice,
		Volume:   100,
	}
}

func TestSeries_Push_EvictsOldest(t *testing.T) {
	s := NewSeries(3)
	for i := 1; i <= 5; i++ {
		s.Push(testCandle(float64(i)))
	}

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{3, 4, 5}, s.Closes())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.Close)
}

func TestSeries_Last_Empty(t *testing.T) {
	s := NewSeries(10)
	_, ok := s.Last()
	assert.False(t, ok)
}

func TestSeries_Projections(t *testing.T) {
	s := NewSeries(4)
	s.Push(testCandle(10))
	s.Push(testCandle(20))

	assert.Equal(t, []float64{10, 20}, s.Closes())
	assert.Equal(t, []float64{12, 22}, s.Highs())
	assert.Equal(t, []float64{8, 18}, s.Lows())
}

func TestParseKline(t *testing.T) {
	c, err := parseKline(1700000000000, "1.5", "2.0", "1.0", "1.8", "42")
	require.NoError(t, err)
	assert.Equal(t, 1.5, c.Open)
	assert.Equal(t, 2.0, c.High)
	assert.Equal(t, 1.0, c.Low)
	assert.Equal(t, 1.8, c.Close)
	assert.Equal(t, 42.0, c.Volume)

	_, err = parseKline(0, "not-a-number", "2", "1", "1.8", "42")
	assert.Error(t, err)
}
