// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quantbot/momentum/internal/config"
	"github.com/quantbot/momentum/internal/exchange"
	"github.com/quantbot/momentum/internal/indicator"
	"github.com/quantbot/momentum/internal/market"
	"github.com/quantbot/momentum/internal/notify"
	"github.com/quantbot/momentum/internal/position"
)

// Runner wires the market stream, the signal evaluation and the position
// lifecycle engine together.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *position.Engine
	stream   *market.Stream
	calc     indicator.Calculator
	notifier *notify.Dispatcher

	mu      sync.Mutex
	windows map[string]*market.Series
}

// NewRunner builds the full trading pipeline from configuration.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	calc := indicator.NewLocal()

	var ex exchange.Exchange
	if cfg.LiveTrading {
		ex = exchange.NewRESTClient(&exchange.RESTClientConfig{
			BaseURL:   cfg.Exchange.RestURL,
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Logger:    logger,
		})
	}

	var notifier *notify.Dispatcher
	if cfg.Notifications.Enabled() {
		notifier = notify.NewDispatcher(
			notify.NewWebhookNotifier(cfg.Notifications.WebhookURL, logger),
			logger,
		)
	}

	quantities := make(map[string]float64, len(cfg.Tickers))
	for _, ticker := range cfg.TickerList() {
		quantities[ticker] = cfg.QuantityFor(ticker)
	}

	engine := position.NewEngine(&position.EngineConfig{
		Exchange:   ex,
		Calculator: calc,
		Notifier:   notifier,
		Settings: position.Settings{
			LiveTrading:       cfg.LiveTrading,
			TradeFeePercent:   cfg.TradeFeePercent,
			ProfitPrecision:   cfg.ProfitPrecision,
			OrderTimeout:      cfg.OrderTimeout(),
			Quantities:        quantities,
			NotifyBuy:         cfg.Notifications.Buy,
			NotifySell:        cfg.Notifications.Sell,
			NotifyProfit:      cfg.Notifications.Profit,
			NotifyTotalProfit: cfg.Notifications.TotalProfit,
			Recipient:         cfg.Notifications.Recipient,
		},
		Logger: logger,
	})

	windows := make(map[string]*market.Series, len(cfg.Tickers))
	for ticker := range cfg.Tickers {
		windows[ticker] = market.NewSeries(cfg.WindowSize)
	}

	return &Runner{
		cfg:      cfg,
		logger:   logger.Named("runner"),
		engine:   engine,
		stream:   market.NewStream(cfg.Exchange.WebsocketURL, cfg.CandleInterval, logger),
		calc:     calc,
		notifier: notifier,
		windows:  windows,
	}
}

// Engine exposes the lifecycle engine for queries and tests.
func (r *Runner) Engine() *position.Engine {
	return r.engine
}

// Run connects the market stream and trades until the context is done.
func (r *Runner) Run(ctx context.Context) error {
	r.stream.OnCandle(func(ticker string, candle market.Candle) {
		r.handleCandle(ctx, ticker, candle)
	})

	if err := r.stream.Connect(ctx, r.cfg.TickerList()); err != nil {
		return fmt.Errorf("start market stream: %w", err)
	}

	r.logger.Info("Bot running",
		zap.Strings("tickers", r.cfg.TickerList()),
		zap.Bool("live_trading", r.cfg.LiveTrading))

	<-ctx.Done()
	return r.shutdown()
}

func (r *Runner) shutdown() error {
	r.logger.Info("Shutting down")

	err := r.stream.Close()
	if r.notifier != nil {
		r.notifier.Wait()
	}

	open := r.engine.GetOpenPositions()
	if len(open) > 0 {
		r.logger.Warn("Positions still open at shutdown", zap.Strings("tickers", open))
	}
	r.logger.Info("Session profit", zap.Float64("total_percent", r.engine.TotalProfit()))

	return err
}

// handleCandle feeds the ticker's window and evaluates the trading rule
// once enough history has accumulated.
func (r *Runner) handleCandle(ctx context.Context, ticker string, candle market.Candle) {
	r.mu.Lock()
	window, ok := r.windows[ticker]
	if !ok {
		r.mu.Unlock()
		return
	}
	window.Push(candle)
	if window.Len() < r.cfg.Strategy.Indicators().MinCandles() {
		r.mu.Unlock()
		return
	}
	snapshot := window.Clone()
	r.mu.Unlock()

	// Trade asynchronously so a slow order never stalls the stream; the
	// engine's reservation discipline handles overlapping evaluations.
	go r.evaluate(ctx, ticker, snapshot)
}

type signal int

const (
	signalHold signal = iota
	signalEnter
	signalExit
)

func (r *Runner) evaluate(ctx context.Context, ticker string, window *market.Series) {
	sig, err := r.signalFor(ctx, ticker, window)
	if err != nil {
		r.logger.Warn("Signal evaluation failed",
			zap.String("ticker", ticker),
			zap.Error(err))
		return
	}

	strat := r.cfg.Strategy.Indicators()
	switch sig {
	case signalEnter:
		if _, err := r.engine.Enter(ctx, ticker, window, strat); err != nil {
			var alreadyOpen *position.AlreadyOpenError
			if errors.As(err, &alreadyOpen) {
				r.logger.Debug("Entry skipped, position already open", zap.String("ticker", ticker))
				return
			}
			r.logger.Error("Entry failed", zap.String("ticker", ticker), zap.Error(err))
		}
	case signalExit:
		if _, err := r.engine.Exit(ctx, ticker, window, strat); err != nil {
			var notOpen *position.NotOpenError
			if errors.As(err, &notOpen) {
				return
			}
			r.logger.Error("Exit failed", zap.String("ticker", ticker), zap.Error(err))
		}
	case signalHold:
	}
}

// signalFor applies the momentum rule: enter on a MACD histogram cross
// above zero while RSI is oversold, exit on a cross below zero or an
// overbought RSI.
func (r *Runner) signalFor(ctx context.Context, ticker string, window *market.Series) (signal, error) {
	strat := r.cfg.Strategy.Indicators()
	closes := window.Closes()

	macd, err := r.calc.MACD(ctx, strat.MACD, closes)
	if err != nil {
		return signalHold, err
	}
	rsi, err := r.calc.RSI(ctx, strat.RSI, closes)
	if err != nil {
		return signalHold, err
	}
	if len(macd) < 2 || len(rsi) == 0 {
		return signalHold, nil
	}

	macdPrev, macdLast := macd[len(macd)-2], macd[len(macd)-1]
	rsiLast := rsi[len(rsi)-1]

	_, open := r.engine.GetOpenPosition(ticker)
	if !open {
		if macdPrev <= 0 && macdLast > 0 && rsiLast < r.cfg.Strategy.RSIOversold {
			return signalEnter, nil
		}
		return signalHold, nil
	}

	if (macdPrev >= 0 && macdLast < 0) || rsiLast > r.cfg.Strategy.RSIOverbought {
		return signalExit, nil
	}
	return signalHold, nil
}
