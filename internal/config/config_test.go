// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validConfigJSON = `{
    "live_trading": false,
    "trade_fee_percent": 0.05,
    "profit_precision": 5,
    "candle_interval": "1m",
    "window_size": 120,
    "exchange": {
        "rest_url": "https://api.example-exchange.com",
        "websocket_url": "wss://stream.example-exchange.com"
    },
    "tickers": {
        "ETHUSDT": {"quantity": 0.5},
        "BTCUSDT": {"quantity": 0.01}
    },
    "notifications": {
        "buy": true,
        "profit": true,
        "recipient": "trader@example.com",
        "webhook_url": "https://hooks.example.com/notify"
    }
}`

var invalidConfigJSON = `{
    "tickers": {},
    "exchange": {"websocket_url": ""}
}`

func setupTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.LiveTrading)
				assert.Equal(t, 0.05, cfg.TradeFeePercent)
				assert.Equal(t, 5, cfg.ProfitPrecision)
				assert.Equal(t, 0.5, cfg.QuantityFor("ETHUSDT"))
				assert.Equal(t, 0.0, cfg.QuantityFor("DOGEUSDT"))
				assert.True(t, cfg.Notifications.Buy)
				assert.False(t, cfg.Notifications.Sell)
				assert.ElementsMatch(t, []string{"ETHUSDT", "BTCUSDT"}, cfg.TickerList())
			},
		},
		{
			name:    "Invalid config - empty required fields",
			content: invalidConfigJSON,
			wantErr: true,
		},
		{
			name:    "Invalid JSON syntax",
			content: "{invalid json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := setupTestConfig(t, tt.content)

			cfg, err := LoadConfig(configPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	configPath := setupTestConfig(t, `{
        "exchange": {"websocket_url": "wss://stream.example-exchange.com"},
        "tickers": {"ETHUSDT": {"quantity": 0.5}}
    }`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultTradeFeePercent, cfg.TradeFeePercent)
	assert.Equal(t, DefaultProfitPrecision, cfg.ProfitPrecision)
	assert.Equal(t, DefaultCandleInterval, cfg.CandleInterval)
	assert.Equal(t, DefaultWindowSize, cfg.WindowSize)
	assert.Equal(t, 12, cfg.Strategy.MACD.FastPeriod)
	assert.Equal(t, 14, cfg.Strategy.RSI.Period)
	assert.Equal(t, 14, cfg.Strategy.Stoch.KPeriod)
	assert.Equal(t, 30.0, cfg.Strategy.RSIOversold)
	assert.Equal(t, 70.0, cfg.Strategy.RSIOverbought)
}

func TestLoadConfig_LiveTradingRequiresCredentials(t *testing.T) {
	configPath := setupTestConfig(t, `{
        "live_trading": true,
        "exchange": {
            "rest_url": "https://api.example-exchange.com",
            "websocket_url": "wss://stream.example-exchange.com"
        },
        "tickers": {"ETHUSDT": {"quantity": 0.5}}
    }`)

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadConfig_NotificationsRequireWebhook(t *testing.T) {
	configPath := setupTestConfig(t, `{
        "exchange": {"websocket_url": "wss://stream.example-exchange.com"},
        "tickers": {"ETHUSDT": {"quantity": 0.5}},
        "notifications": {"profit": true, "recipient": "trader@example.com"}
    }`)

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")
}

func TestLoadConfig_WindowBelowWarmup(t *testing.T) {
	configPath := setupTestConfig(t, `{
        "window_size": 10,
        "exchange": {"websocket_url": "wss://stream.example-exchange.com"},
        "tickers": {"ETHUSDT": {"quantity": 0.5}}
    }`)

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm-up")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MOMENTUM_BOT_API_KEY", "env-key")
	t.Setenv("MOMENTUM_BOT_API_SECRET", "env-secret")

	configPath := setupTestConfig(t, validConfigJSON)
	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
}
