package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, serverURL string) *RESTClient {
	return NewRESTClient(&RESTClientConfig{
		BaseURL:    serverURL,
		APIKey:     "test-key",
		APISecret:  "test-secret",
		Timeout:    2 * time.Second,
		MaxElapsed: 2 * time.Second,
		Logger:     zaptest.NewLogger(t),
	})
}

func TestRESTClient_PlaceMarketOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, orderPath, r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		q := r.URL.Query()
		assert.Equal(t, "ETHUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.5", q.Get("quantity"))
		assert.NotEmpty(t, q.Get("newClientOrderId"))
		assert.NotEmpty(t, q.Get("timestamp"))

		// The signature must cover everything before the signature parameter.
		raw := r.URL.RawQuery
		idx := strings.Index(raw, "&signature=")
		require.Greater(t, idx, 0)
		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(raw[:idx]))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), q.Get("signature"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ETHUSDT","orderId":12345,"clientOrderId":"` +
			q.Get("newClientOrderId") + `","transactTime":1700000000000,"executedQty":"0.5"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.PlaceMarketOrder(context.Background(), SideBuy, "ETHUSDT", 0.5)
	require.NoError(t, err)

	assert.Equal(t, "12345", result.OrderID)
	assert.Equal(t, "ETHUSDT", result.Ticker)
	assert.Equal(t, SideBuy, result.Side)
	assert.Equal(t, 0.5, result.Quantity)
	assert.NotEmpty(t, result.ClientOrderID)
}

func TestRESTClient_PlaceMarketOrder_Rejected(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.PlaceMarketOrder(context.Background(), SideSell, "ETHUSDT", 100)
	require.Error(t, err)

	assert.True(t, IsRejection(err))
	assert.Contains(t, err.Error(), "insufficient balance")
	// Rejections are permanent: no retries.
	assert.Equal(t, 1, calls)
}

func TestRESTClient_PlaceMarketOrder_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":-1000,"msg":"An unknown error occurred."}`))
			return
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","orderId":7,"clientOrderId":"x","transactTime":1700000000000,"executedQty":"0.01"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.PlaceMarketOrder(context.Background(), SideBuy, "BTCUSDT", 0.01)
	require.NoError(t, err)
	assert.Equal(t, "7", result.OrderID)
	assert.Equal(t, 3, calls)
}
