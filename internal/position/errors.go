// internal/position/errors.go
package position

import "fmt"

// AlreadyOpenError is returned when an entry is attempted on a ticker that
// already holds a position or an in-flight reservation.
type AlreadyOpenError struct {
	Ticker string
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("position already open for %s", e.Ticker)
}

// NotOpenError is returned when an exit or condition update targets a
// ticker with no committed position.
type NotOpenError struct {
	Ticker string
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("no open position for %s", e.Ticker)
}

// MissingQuantityError is returned when live trading requires a configured
// quantity that is absent.
type MissingQuantityError struct {
	Ticker string
}

func (e *MissingQuantityError) Error() string {
	return fmt.Sprintf("quantity must be set for %s", e.Ticker)
}

// GatewayError wraps a failure reported by an order or indicator gateway.
type GatewayError struct {
	Op     string
	Ticker string
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Ticker, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
