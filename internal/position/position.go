// internal/position/position.go
package position

import (
	"time"

	"github.com/quantbot/momentum/internal/market"
)

// Indicators is the snapshot of indicator values at entry time.
type Indicators struct {
	MACD  float64
	RSI   float64
	Stoch float64
}

// Position is a record of an open trade. Entry data is immutable once the
// position is committed; Condition is mutated post-entry by strategy logic
// through Engine.UpdateCondition.
type Position struct {
	Ticker          string
	Quantity        float64
	EntryCandle     market.Candle
	EntryIndicators Indicators
	EntryTime       time.Time
	Condition       map[string]interface{}
}
