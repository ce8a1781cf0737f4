// internal/position/engine.go
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantbot/momentum/internal/exchange"
	"github.com/quantbot/momentum/internal/indicator"
	"github.com/quantbot/momentum/internal/market"
	"github.com/quantbot/momentum/internal/notify"
)

// Settings holds the trading options the engine honors.
type Settings struct {
	LiveTrading       bool
	TradeFeePercent   float64
	ProfitPrecision   int
	OrderTimeout      time.Duration
	Quantities        map[string]float64
	NotifyBuy         bool
	NotifySell        bool
	NotifyProfit      bool
	NotifyTotalProfit bool
	Recipient         string
}

// EngineConfig configures the lifecycle engine.
type EngineConfig struct {
	Exchange   exchange.Exchange
	Calculator indicator.Calculator
	Notifier   *notify.Dispatcher
	Settings   Settings
	Logger     *zap.Logger
}

// Engine owns the position store and the profit ledger, and drives every
// transition into and out of them.
//
// The mutex serializes map mutation only; it is never held across gateway
// calls. Mutual exclusion per ticker comes from the reservation written
// under the lock before any asynchronous work begins: a nil entry in the
// positions map marks an in-flight entry and blocks concurrent entries for
// the same ticker until it is either committed or rolled back.
type Engine struct {
	mu        sync.Mutex
	positions map[string]*Position

	ledger   *Ledger
	exchange exchange.Exchange
	calc     indicator.Calculator
	notifier *notify.Dispatcher
	settings Settings
	logger   *zap.Logger
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg *EngineConfig) *Engine {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewDispatcher(nil, cfg.Logger)
	}
	if cfg.Settings.OrderTimeout == 0 {
		cfg.Settings.OrderTimeout = 30 * time.Second
	}
	return &Engine{
		positions: make(map[string]*Position),
		ledger:    NewLedger(),
		exchange:  cfg.Exchange,
		calc:      cfg.Calculator,
		notifier:  notifier,
		settings:  cfg.Settings,
		logger:    cfg.Logger.Named("position_engine"),
	}
}

// Enter opens a position for the ticker: it reserves the slot, places the
// buy order and computes the indicator snapshot concurrently, and commits
// the assembled position. On any failure the reservation is released and
// the store is left exactly as it was.
func (e *Engine) Enter(ctx context.Context, ticker string, series *market.Series, strat indicator.StrategyConfig) (*Position, error) {
	entryCandle, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("empty price history for %s", ticker)
	}

	// Atomic check-and-insert: the reservation must be visible before any
	// concurrent Enter for the same ticker runs its own check.
	e.mu.Lock()
	if _, exists := e.positions[ticker]; exists {
		e.mu.Unlock()
		return nil, &AlreadyOpenError{Ticker: ticker}
	}
	e.positions[ticker] = nil
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.positions, ticker)
		e.mu.Unlock()
	}

	quantity := e.settings.Quantities[ticker]
	if e.settings.LiveTrading && quantity <= 0 {
		release()
		return nil, &MissingQuantityError{Ticker: ticker}
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	opCtx, cancel := context.WithTimeout(ctx, e.settings.OrderTimeout)
	defer cancel()

	var (
		order       *exchange.OrderResult
		macdSeries  []float64
		rsiSeries   []float64
		stochSeries []float64
	)

	g, gCtx := errgroup.WithContext(opCtx)
	g.Go(func() error {
		if !e.settings.LiveTrading {
			e.logger.Info("Dry run: would enter position",
				zap.String("ticker", ticker),
				zap.Time("candle_time", entryCandle.OpenTime))
			return nil
		}
		res, err := e.exchange.PlaceMarketOrder(gCtx, exchange.SideBuy, ticker, quantity)
		if err != nil {
			return &GatewayError{Op: "buy order", Ticker: ticker, Err: err}
		}
		order = res
		if e.settings.NotifyBuy {
			e.notifier.Dispatch("Successful Buy",
				fmt.Sprintf("Executed market buy of %v %s", quantity, ticker),
				e.settings.Recipient)
		}
		return nil
	})
	g.Go(func() error {
		values, err := e.calc.MACD(gCtx, strat.MACD, closes)
		if err != nil {
			return &GatewayError{Op: "MACD calculation", Ticker: ticker, Err: err}
		}
		macdSeries = values
		return nil
	})
	g.Go(func() error {
		values, err := e.calc.RSI(gCtx, strat.RSI, closes)
		if err != nil {
			return &GatewayError{Op: "RSI calculation", Ticker: ticker, Err: err}
		}
		rsiSeries = values
		return nil
	})
	g.Go(func() error {
		values, err := e.calc.Stoch(gCtx, strat.Stoch, highs, lows, closes)
		if err != nil {
			return &GatewayError{Op: "STOCH calculation", Ticker: ticker, Err: err}
		}
		stochSeries = values
		return nil
	})

	if err := g.Wait(); err != nil {
		release()
		return nil, err
	}

	snapshot, err := entrySnapshot(macdSeries, rsiSeries, stochSeries)
	if err != nil {
		release()
		return nil, &GatewayError{Op: "indicator snapshot", Ticker: ticker, Err: err}
	}

	pos := &Position{
		Ticker:          ticker,
		Quantity:        quantity,
		EntryCandle:     entryCandle,
		EntryIndicators: snapshot,
		EntryTime:       entryCandle.OpenTime,
		Condition:       make(map[string]interface{}),
	}

	e.mu.Lock()
	e.positions[ticker] = pos
	e.mu.Unlock()

	fields := []zap.Field{
		zap.String("ticker", ticker),
		zap.Float64("entry_close", entryCandle.Close),
		zap.Float64("macd", snapshot.MACD),
		zap.Float64("rsi", snapshot.RSI),
		zap.Float64("stoch", snapshot.Stoch),
	}
	if order != nil {
		fields = append(fields, zap.String("order_id", order.OrderID))
	}
	e.logger.Info("Position opened", fields...)

	return pos, nil
}

// Exit closes the position for the ticker: it removes the position from
// the store first, places the closing order, records realized profit and
// fires the configured notifications. The removed position is returned for
// caller bookkeeping.
func (e *Engine) Exit(ctx context.Context, ticker string, series *market.Series, _ indicator.StrategyConfig) (*Position, error) {
	exitCandle, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("empty price history for %s", ticker)
	}

	// Atomic check-and-remove: the slot is free for a fresh Enter as soon
	// as the lock drops, and a concurrent Exit fails its precondition.
	e.mu.Lock()
	pos, exists := e.positions[ticker]
	if !exists || pos == nil {
		e.mu.Unlock()
		return nil, &NotOpenError{Ticker: ticker}
	}
	delete(e.positions, ticker)
	e.mu.Unlock()

	if e.settings.LiveTrading {
		opCtx, cancel := context.WithTimeout(ctx, e.settings.OrderTimeout)
		defer cancel()

		order, err := e.exchange.PlaceMarketOrder(opCtx, exchange.SideSell, ticker, pos.Quantity)
		if err != nil {
			return nil, &GatewayError{Op: "sell order", Ticker: ticker, Err: err}
		}
		e.logger.Info("Closing order executed",
			zap.String("ticker", ticker),
			zap.String("order_id", order.OrderID))

		if e.settings.NotifySell {
			e.notifier.Dispatch("Successful Sell",
				fmt.Sprintf("Executed market sell of %v %s", pos.Quantity, ticker),
				e.settings.Recipient)
		}
	} else {
		e.logger.Info("Dry run: would exit position",
			zap.String("ticker", ticker),
			zap.Time("candle_time", exitCandle.OpenTime))
	}

	profit := (exitCandle.Close-pos.EntryCandle.Close)/pos.EntryCandle.Close*100 -
		2*e.settings.TradeFeePercent
	e.ledger.Append(ticker, profit)

	e.logger.Info("Position closed",
		zap.String("ticker", ticker),
		zap.Float64("entry_close", pos.EntryCandle.Close),
		zap.Float64("exit_close", exitCandle.Close),
		zap.Float64("profit_percent", profit))

	if e.settings.NotifyProfit {
		e.notifier.Dispatch("Profit Report",
			fmt.Sprintf("Profit of %.*f%% recorded for %s", e.settings.ProfitPrecision, profit, ticker),
			e.settings.Recipient)
	}
	if e.settings.NotifyTotalProfit {
		e.notifier.Dispatch("Total Profit Report",
			fmt.Sprintf("Total profit of %.*f%%", e.settings.ProfitPrecision, e.ledger.TotalProfit()),
			e.settings.Recipient)
	}

	return pos, nil
}

// GetOpenPosition returns the committed position for a ticker. An in-flight
// reservation is not observable.
func (e *Engine) GetOpenPosition(ticker string) (*Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, exists := e.positions[ticker]
	return pos, exists && pos != nil
}

// GetOpenPositions returns the tickers with committed positions, in
// unspecified order.
func (e *Engine) GetOpenPositions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.positions))
	for ticker, pos := range e.positions {
		if pos != nil {
			out = append(out, ticker)
		}
	}
	return out
}

// UpdateCondition sets a named condition value on the open position for a
// ticker.
func (e *Engine) UpdateCondition(ticker, name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, exists := e.positions[ticker]
	if !exists || pos == nil {
		return &NotOpenError{Ticker: ticker}
	}
	pos.Condition[name] = value
	return nil
}

// ProfitFor returns the accumulated realized profit for a ticker.
func (e *Engine) ProfitFor(ticker string) float64 {
	return e.ledger.ProfitFor(ticker)
}

// TotalProfit returns the accumulated realized profit across all tickers.
func (e *Engine) TotalProfit() float64 {
	return e.ledger.TotalProfit()
}

// Ledger exposes the profit ledger for read-side consumers.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Reset clears the position store and the profit ledger. Intended for test
// isolation; not safe while entries or exits are in flight.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.positions = make(map[string]*Position)
	e.mu.Unlock()
	e.ledger.Reset()
}

func entrySnapshot(macd, rsi, stoch []float64) (Indicators, error) {
	last := func(kind indicator.Kind, series []float64) (float64, error) {
		if len(series) == 0 {
			return 0, fmt.Errorf("%s series is empty", kind)
		}
		return series[len(series)-1], nil
	}

	var snapshot Indicators
	var err error
	if snapshot.MACD, err = last(indicator.KindMACD, macd); err != nil {
		return Indicators{}, err
	}
	if snapshot.RSI, err = last(indicator.KindRSI, rsi); err != nil {
		return Indicators{}, err
	}
	if snapshot.Stoch, err = last(indicator.KindStoch, stoch); err != nil {
		return Indicators{}, err
	}
	return snapshot, nil
}
