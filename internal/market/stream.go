// internal/market/stream.go
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 30 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// CandleHandler is called for every closed candle received on the stream.
type CandleHandler func(ticker string, candle Candle)

// Stream consumes kline updates for a set of tickers over a websocket
// connection and delivers closed candles to registered handlers.
type Stream struct {
	wsURL    string
	interval string
	logger   *zap.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	tickers []string
	closed  bool

	handlerMu sync.RWMutex
	handlers  []CandleHandler

	done chan struct{}
}

// NewStream creates a stream for the given websocket endpoint and candle
// interval (e.g. "1m").
func NewStream(wsURL, interval string, logger *zap.Logger) *Stream {
	return &Stream{
		wsURL:    wsURL,
		interval: interval,
		logger:   logger.Named("market_stream"),
		done:     make(chan struct{}),
	}
}

// OnCandle registers a handler for closed candles.
func (s *Stream) OnCandle(h CandleHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Connect opens the websocket connection for the given tickers and starts
// the read and ping loops. The combined-stream URL carries the
// subscriptions, so reconnecting re-subscribes implicitly.
func (s *Stream) Connect(ctx context.Context, tickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("market stream: client is closed")
	}
	if len(tickers) == 0 {
		return fmt.Errorf("market stream: no tickers to subscribe")
	}
	s.tickers = tickers

	if err := s.dial(ctx); err != nil {
		return err
	}

	conn := s.conn
	go s.readLoop(conn)
	go s.pingLoop(conn)
	return nil
}

func (s *Stream) dial(ctx context.Context) error {
	streams := make([]string, len(s.tickers))
	for i, t := range s.tickers {
		streams[i] = fmt.Sprintf("%s@kline_%s", strings.ToLower(t), s.interval)
	}
	url := fmt.Sprintf("%s/stream?streams=%s", s.wsURL, strings.Join(streams, "/"))

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("market stream: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Replacing the connection retires its loops: each read and ping loop
	// is bound to one conn and exits once that conn fails.
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.logger.Info("Connected to market stream",
		zap.String("url", s.wsURL),
		zap.Strings("tickers", s.tickers),
		zap.String("interval", s.interval))
	return nil
}

// Close shuts the stream down. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// readLoop consumes messages from one connection until it fails, then
// hands off to reconnect.
func (s *Stream) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("Market stream read failed, reconnecting", zap.Error(err))
			s.reconnect()
			return
		}

		s.handleMessage(msg)
	}
}

// pingLoop keeps one connection alive and exits when that connection
// stops accepting pings.
func (s *Stream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("Market stream ping failed, stopping keepalive", zap.Error(err))
				return
			}
		}
	}
}

// reconnect retries the connection with exponential backoff until it
// succeeds or the stream is closed.
func (s *Stream) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		err := s.dial(context.Background())
		conn := s.conn
		s.mu.Unlock()

		if err == nil {
			go s.readLoop(conn)
			go s.pingLoop(conn)
			return
		}

		s.logger.Warn("Market stream reconnect failed",
			zap.Duration("next_attempt_in", delay),
			zap.Error(err))
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// klineMessage mirrors the combined-stream kline payload.
type klineMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime int64  `json:"t"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (s *Stream) handleMessage(msg []byte) {
	var km klineMessage
	if err := json.Unmarshal(msg, &km); err != nil {
		s.logger.Debug("Skipping unparseable stream message", zap.Error(err))
		return
	}
	if km.Data.Symbol == "" || !km.Data.Kline.Closed {
		// Only fully closed candles feed the strategy.
		return
	}

	k := km.Data.Kline
	candle, err := parseKline(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		s.logger.Warn("Dropping malformed kline",
			zap.String("ticker", km.Data.Symbol),
			zap.Error(err))
		return
	}

	s.handlerMu.RLock()
	handlers := make([]CandleHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.handlerMu.RUnlock()

	for _, h := range handlers {
		h(km.Data.Symbol, candle)
	}
}

func parseKline(openTime int64, open, high, low, closePrice, volume string) (Candle, error) {
	c := Candle{OpenTime: time.UnixMilli(openTime)}
	for _, field := range []struct {
		raw string
		dst *float64
	}{
		{open, &c.Open},
		{high, &c.High},
		{low, &c.Low},
		{closePrice, &c.Close},
		{volume, &c.Volume},
	} {
		v, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("parse kline field %q: %w", field.raw, err)
		}
		*field.dst = v
	}
	return c, nil
}
