// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quantbot/momentum/internal/indicator"
)

// TickerConfig holds per-instrument trade settings.
type TickerConfig struct {
	Quantity float64 `mapstructure:"quantity"`
}

// ExchangeConfig holds venue connectivity settings.
type ExchangeConfig struct {
	RestURL      string `mapstructure:"rest_url"`
	WebsocketURL string `mapstructure:"websocket_url"`
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`
}

// NotificationsConfig holds the independent notification toggles.
type NotificationsConfig struct {
	Buy         bool   `mapstructure:"buy"`
	Sell        bool   `mapstructure:"sell"`
	Profit      bool   `mapstructure:"profit"`
	TotalProfit bool   `mapstructure:"total_profit"`
	Recipient   string `mapstructure:"recipient"`
	WebhookURL  string `mapstructure:"webhook_url"`
}

// Enabled reports whether any notification kind is switched on.
func (n NotificationsConfig) Enabled() bool {
	return n.Buy || n.Sell || n.Profit || n.TotalProfit
}

// StrategyConfig holds indicator parameters and signal thresholds.
type StrategyConfig struct {
	MACD          indicator.MACDConfig  `mapstructure:"macd"`
	RSI           indicator.RSIConfig   `mapstructure:"rsi"`
	Stoch         indicator.StochConfig `mapstructure:"stoch"`
	RSIOversold   float64               `mapstructure:"rsi_oversold"`
	RSIOverbought float64               `mapstructure:"rsi_overbought"`
}

// Indicators returns the indicator parameter set for gateway calls.
func (s StrategyConfig) Indicators() indicator.StrategyConfig {
	return indicator.StrategyConfig{MACD: s.MACD, RSI: s.RSI, Stoch: s.Stoch}
}

type Config struct {
	LiveTrading     bool                    `mapstructure:"live_trading"`
	TradeFeePercent float64                 `mapstructure:"trade_fee_percent"`
	ProfitPrecision int                     `mapstructure:"profit_precision"`
	CandleInterval  string                  `mapstructure:"candle_interval"`
	WindowSize      int                     `mapstructure:"window_size"`
	OrderTimeoutSec int                     `mapstructure:"order_timeout_sec"`
	LogFile         string                  `mapstructure:"log_file"`
	DebugLogging    bool                    `mapstructure:"debug_logging"`
	Exchange        ExchangeConfig          `mapstructure:"exchange"`
	Tickers         map[string]TickerConfig `mapstructure:"tickers"`
	Notifications   NotificationsConfig     `mapstructure:"notifications"`
	Strategy        StrategyConfig          `mapstructure:"strategy"`
}

const (
	DefaultTradeFeePercent = 0.05
	DefaultProfitPrecision = 5
	DefaultCandleInterval  = "1m"
	DefaultWindowSize      = 120
	DefaultOrderTimeout    = 30
)

// LoadConfig reads, unmarshals and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"trade_fee_percent":       DefaultTradeFeePercent,
		"profit_precision":        DefaultProfitPrecision,
		"candle_interval":         DefaultCandleInterval,
		"window_size":             DefaultWindowSize,
		"order_timeout_sec":       DefaultOrderTimeout,
		"strategy.macd":           map[string]interface{}{"fast_period": 12, "slow_period": 26, "signal_period": 9},
		"strategy.rsi":            map[string]interface{}{"period": 14},
		"strategy.stoch":          map[string]interface{}{"k_period": 14, "k_slowing": 3, "d_period": 3},
		"strategy.rsi_oversold":   30.0,
		"strategy.rsi_overbought": 70.0,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

// OrderTimeout returns the per-operation gateway timeout.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutSec) * time.Second
}

// QuantityFor returns the configured trade quantity for a ticker, or zero
// when none is configured.
func (c *Config) QuantityFor(ticker string) float64 {
	return c.Tickers[ticker].Quantity
}

// TickerList returns the configured tickers.
func (c *Config) TickerList() []string {
	out := make([]string, 0, len(c.Tickers))
	for t := range c.Tickers {
		out = append(out, t)
	}
	return out
}

func validateConfig(cfg *Config) error {
	if len(cfg.Tickers) == 0 {
		return errors.New("tickers is empty")
	}
	if cfg.TradeFeePercent < 0 {
		return errors.New("invalid trade_fee_percent")
	}
	if cfg.ProfitPrecision <= 0 {
		return errors.New("invalid profit_precision")
	}
	if cfg.OrderTimeoutSec <= 0 {
		return errors.New("invalid order_timeout_sec")
	}
	if cfg.CandleInterval == "" {
		return errors.New("missing candle_interval")
	}
	if min := cfg.Strategy.Indicators().MinCandles(); cfg.WindowSize < min {
		return fmt.Errorf("window_size %d is below the indicator warm-up of %d candles",
			cfg.WindowSize, min)
	}
	if cfg.Exchange.WebsocketURL == "" {
		return errors.New("missing exchange websocket_url")
	}
	if err := validateURL(cfg.Exchange.WebsocketURL, "ws"); err != nil {
		return errors.New("invalid exchange websocket_url protocol")
	}
	if cfg.LiveTrading {
		if cfg.Exchange.RestURL == "" {
			return errors.New("live trading requires exchange rest_url")
		}
		if err := validateURL(cfg.Exchange.RestURL, "http"); err != nil {
			return errors.New("invalid exchange rest_url protocol")
		}
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
			return errors.New("live trading requires exchange api_key and api_secret")
		}
	}
	if cfg.Notifications.Enabled() {
		if cfg.Notifications.WebhookURL == "" {
			return errors.New("notifications require webhook_url")
		}
		if err := validateURL(cfg.Notifications.WebhookURL, "https"); err != nil {
			return errors.New("notification webhook_url must use HTTPS")
		}
		if cfg.Notifications.Recipient == "" {
			return errors.New("notifications require a recipient")
		}
	}
	if cfg.Strategy.RSIOversold >= cfg.Strategy.RSIOverbought {
		return errors.New("rsi_oversold must be below rsi_overbought")
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("MOMENTUM_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if v.IsSet("LIVE_TRADING") {
		cfg.LiveTrading = v.GetBool("LIVE_TRADING")
	}
	if key := v.GetString("API_KEY"); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := v.GetString("API_SECRET"); secret != "" {
		cfg.Exchange.APISecret = secret
	}
	if recipient := v.GetString("NOTIFICATION_RECIPIENT"); recipient != "" {
		cfg.Notifications.Recipient = recipient
	}
}
