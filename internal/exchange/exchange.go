// Package exchange talks to the trading venue's order API.
package exchange

import (
	"context"
	"fmt"
	"time"
)

// Side is the direction of a market order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderResult is the venue's confirmation of a placed order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Ticker        string
	Side          Side
	Quantity      float64
	ExecutedAt    time.Time
}

// APIError is an error reported by the venue, carrying its machine-readable
// code and message.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange rejected request (code %d): %s", e.Code, e.Message)
}

// Exchange places market orders. Implementations are safe for concurrent
// use and treat each call as independent.
type Exchange interface {
	PlaceMarketOrder(ctx context.Context, side Side, ticker string, quantity float64) (*OrderResult, error)
}
